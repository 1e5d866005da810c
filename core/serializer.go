package core

import (
	"bytes"
	"encoding/json"
)

// Serialize renders a command's result rows as the flat key/value JSON
// array the command loop writes out: a JSON array of JSON objects, keys
// in insertion order, `null`/absent attributes omitted. A nil or empty
// rows slice renders as `[]` (see DESIGN.md: empty results are not
// rendered as a one-element `[{}]` row).
func Serialize(rows []*Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		written := 0
		for _, k := range r.Keys() {
			v, ok := r.Get(k)
			if !ok {
				continue
			}
			if written > 0 {
				buf.WriteByte(',')
			}
			written++
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			valJSON, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			buf.Write(valJSON)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
