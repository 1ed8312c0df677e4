package main

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/centogram/strapi/internal/db/migrate"
	"github.com/centogram/strapi/internal/db/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema reconciliation commands",
	Long:  "Compare and reconcile the database schema with the models in strapi.yml",
}

var schemaDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the changes needed to match the declared models",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, cfg, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		registry, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		provider := schema.NewProvider(registry, conn, nil, migrate.TrackerTable)
		changes, err := provider.Diff(cmd.Context())
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			color.New(color.FgGreen).Println("Schema is in sync")
			return nil
		}

		printChanges(changes)
		return nil
	},
}

var schemaAllowDestructive bool

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the schema changes",
	Long:  "Apply the detected schema changes in one transaction. Destructive changes require --allow-destructive and an interactive confirmation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, cfg, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		registry, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		provider := schema.NewProvider(registry, conn, nil, migrate.TrackerTable)
		changes, err := provider.Diff(cmd.Context())
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			color.New(color.FgGreen).Println("Schema is in sync")
			return nil
		}

		printChanges(changes)

		destructive := 0
		for _, change := range changes {
			if change.Destructive {
				destructive++
			}
		}

		if destructive > 0 && schemaAllowDestructive {
			confirmed := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Apply %d destructive change(s)? Data will be lost.", destructive),
			}
			if err := survey.AskOne(prompt, &confirmed); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted")
				return nil
			}
		}

		applied, err := provider.Apply(cmd.Context(), schema.ApplyOptions{
			AllowDestructive: schemaAllowDestructive,
		})
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Printf("Applied %d change(s)\n", applied)
		if skipped := len(changes) - applied; skipped > 0 {
			color.New(color.FgYellow).Printf("Skipped %d destructive change(s); re-run with --allow-destructive\n", skipped)
		}
		return nil
	},
}

func printChanges(changes []schema.Change) {
	destructive := color.New(color.FgRed)
	additive := color.New(color.FgCyan)
	for _, change := range changes {
		line := fmt.Sprintf("  %-13s %s", change.Type, change.Table)
		if change.Column != "" {
			line += "." + change.Column
		}
		if change.Destructive {
			destructive.Println(line + "  (destructive)")
		} else {
			additive.Println(line)
		}
	}
}

func init() {
	schemaApplyCmd.Flags().BoolVar(&schemaAllowDestructive, "allow-destructive", false, "permit DROP TABLE and DROP COLUMN changes")
	schemaCmd.AddCommand(schemaDiffCmd)
	schemaCmd.AddCommand(schemaApplyCmd)
}
