package domain

import (
	"fmt"
	"strconv"
)

// ToRow maps one record into a row. It is pure and never fails: a missing
// or null field becomes "", and every value is stringified before the
// column transform runs.
func (r Report) ToRow(rec Record) Row {
	row := make(Row, len(r.Columns))
	for i, col := range r.Columns {
		v := stringify(rec[col.Name])
		if col.Transform != nil {
			v = col.Transform(v)
		}
		row[i] = v
	}
	return row
}

// Rows filters, transforms and orders a collected record set according to
// the report definition. Records rejected by the filter never reach ToRow.
func (r Report) Rows(records []Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if r.Filter != nil && !r.Filter(rec) {
			continue
		}
		rows = append(rows, r.ToRow(rec))
	}
	if r.Reverse {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// encoding/json decodes all numbers into float64
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
