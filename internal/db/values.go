package db

import (
	"context"

	"github.com/shopspring/decimal"
)

// Values returns the stored value for each of codes that exists.
// With no codes it returns every stored value.
func (d *DB) Values(ctx context.Context, codes []string) (map[string]decimal.Decimal, error) {
	q := `SELECT code,value FROM currencies`
	args := []any{}
	if len(codes) > 0 {
		q += ` WHERE code IN (` + placeholders(len(codes)) + `)`
		for _, c := range codes {
			args = append(args, c)
		}
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]decimal.Decimal{}
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		out[code] = v
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ",?"
	}
	return s
}
