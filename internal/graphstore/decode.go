// File path: internal/graphstore/decode.go
package graphstore

import (
	"fmt"
)

// decodeReply normalizes a GRAPH.QUERY reply into a Result. FalkorDB answers
// with a three-element array for result-bearing queries (header, rows,
// statistics) and a single statistics array otherwise. Header cells are
// either plain strings or [type, name] pairs depending on compact mode.
func decodeReply(reply interface{}) (Result, error) {
	if reply == nil {
		return Result{}, nil
	}
	top, ok := reply.([]interface{})
	if !ok {
		return Result{}, fmt.Errorf("unexpected graph reply type %T", reply)
	}
	if len(top) < 2 {
		// Statistics only; no result set.
		return Result{}, nil
	}

	header, err := decodeHeader(top[0])
	if err != nil {
		return Result{}, err
	}
	rows, err := decodeRows(top[1])
	if err != nil {
		return Result{}, err
	}
	return Result{Header: header, Rows: rows}, nil
}

func decodeHeader(raw interface{}) ([]string, error) {
	cells, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected graph header type %T", raw)
	}
	header := make([]string, 0, len(cells))
	for _, cell := range cells {
		switch v := cell.(type) {
		case string:
			header = append(header, v)
		case []interface{}:
			// Compact header cell: [column type, column name].
			if len(v) > 0 {
				if name, ok := v[len(v)-1].(string); ok {
					header = append(header, name)
					continue
				}
			}
			header = append(header, fmt.Sprint(v))
		default:
			header = append(header, fmt.Sprint(v))
		}
	}
	return header, nil
}

func decodeRows(raw interface{}) ([][]interface{}, error) {
	rawRows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected graph rows type %T", raw)
	}
	rows := make([][]interface{}, 0, len(rawRows))
	for _, rawRow := range rawRows {
		cells, ok := rawRow.([]interface{})
		if !ok {
			// Single-column replies may arrive unwrapped.
			rows = append(rows, []interface{}{rawRow})
			continue
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
