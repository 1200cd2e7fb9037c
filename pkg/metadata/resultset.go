package metadata

import "fmt"

// ResultSet is a fully materialized query result. Row values keep their
// driver types except []byte, which is converted to string for display.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// RowCount returns the number of rows.
func (rs *ResultSet) RowCount() int {
	return len(rs.Rows)
}

// Collect drains the rows into memory and closes them. A limit below one
// means no cap; otherwise collection stops after limit rows.
func (r *Rows) Collect(limit int) (*ResultSet, error) {
	defer func() { _ = r.Close() }()

	cols, err := r.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	for r.Next() {
		if limit > 0 && len(rs.Rows) >= limit {
			break
		}

		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := r.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}
	return rs, nil
}
