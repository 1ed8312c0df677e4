package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/centogram/strapi/internal/cli/ui"
	"github.com/centogram/strapi/internal/db/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
	Long:  "Run and manage the SQL migrations in the migrations/ directory",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		migrations, err := loadMigrations()
		if err != nil {
			return err
		}
		if len(migrations) == 0 {
			fmt.Println("No migration files found in migrations/")
			return nil
		}

		runner, err := migrate.NewRunner(conn, migrations, nil)
		if err != nil {
			return err
		}

		ran, err := runner.Up(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration failed after %d applied: %w", ran, err)
		}
		if ran == 0 {
			fmt.Println("Database is up to date")
			return nil
		}
		color.New(color.FgGreen).Printf("Applied %d migration(s)\n", ran)
		return nil
	},
}

var migrateDownSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		migrations, err := loadMigrations()
		if err != nil {
			return err
		}
		runner, err := migrate.NewRunner(conn, migrations, nil)
		if err != nil {
			return err
		}

		reverted, err := runner.Down(cmd.Context(), migrateDownSteps)
		if err != nil {
			return fmt.Errorf("revert failed after %d reverted: %w", reverted, err)
		}
		color.New(color.FgGreen).Printf("Reverted %d migration(s)\n", reverted)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		migrations, err := loadMigrations()
		if err != nil {
			return err
		}
		runner, err := migrate.NewRunner(conn, migrations, nil)
		if err != nil {
			return err
		}

		statuses, err := runner.Status(cmd.Context())
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Println("No migration files found in migrations/")
			return nil
		}

		table := ui.NewTable(os.Stdout, "VERSION", "NAME", "STATUS", "APPLIED AT")
		for _, st := range statuses {
			if st.Applied {
				table.AddRow(strconv.FormatInt(st.Version, 10), st.Name,
					color.GreenString("applied"), st.AppliedAt.Format("2006-01-02 15:04:05"))
			} else {
				table.AddRow(strconv.FormatInt(st.Version, 10), st.Name,
					color.YellowString("pending"))
			}
		}
		table.Render()
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to revert")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
