package repository

import "database/sql"

// scanRowColumns scans a single row with a known column order into a record
// map
func scanRowColumns(row *sql.Row, columns []string) (map[string]interface{}, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := row.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	record := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		record[col] = normalizeValue(values[i])
	}
	return record, nil
}

// normalizeValue converts driver byte slices to strings so records compare
// cleanly across dialects
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
