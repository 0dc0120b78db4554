package cryo

import (
	"database/sql"
)

// rowReader scans result set rows into column value maps
type rowReader struct {
	count    int
	names    []string
	values   []any
	scanArgs []any
}

func newRowReader(rows *sql.Rows) (*rowReader, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	r := &rowReader{
		count:    len(names),
		names:    names,
		values:   make([]any, len(names)),
		scanArgs: make([]any, len(names)),
	}
	for i := range names {
		r.scanArgs[i] = &columnValueScanner{reader: r, index: i}
	}
	return r, nil
}

func (r *rowReader) read(rows *sql.Rows) (map[string]any, error) {
	if err := rows.Scan(r.scanArgs...); err != nil {
		return nil, err
	}
	result := make(map[string]any, r.count)
	for i, name := range r.names {
		result[name] = r.values[i]
	}
	return result, nil
}

type columnValueScanner struct {
	reader *rowReader
	index  int
}

var _ sql.Scanner = (*columnValueScanner)(nil)

// Scan copies []byte values - drivers may reuse the underlying buffer
func (c *columnValueScanner) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		c.reader.values[c.index] = append([]byte(nil), v...)
	default:
		c.reader.values[c.index] = v
	}
	return nil
}
