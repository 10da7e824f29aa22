package interpreter

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

var errUnknownField = errors.New("unknown field")

// UnmarshalJSON decodes the known fields and keeps everything else in Extra.
// A known field that fails to decode is kept in Extra under its own name.
func (r *ErrorRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = ErrorRecord{}
	for key, raw := range fields {
		var err error
		switch key {
		case "message":
			err = json.Unmarshal(raw, &r.Message)
		case "phase":
			err = json.Unmarshal(raw, &r.Phase)
		case "severity":
			err = json.Unmarshal(raw, &r.Severity)
		case "line":
			err = json.Unmarshal(raw, &r.Line)
		case "column":
			err = json.Unmarshal(raw, &r.Column)
		case "trace":
			err = json.Unmarshal(raw, &r.Trace)
		default:
			err = errUnknownField
		}
		if err != nil {
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = raw
		}
	}
	return nil
}

// MarshalJSON encodes the known fields in declaration order followed by the
// remaining Extra entries sorted by key.
func (r ErrorRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	written := 0
	write := func(key string, value any, omit bool) error {
		if raw, ok := r.Extra[key]; ok {
			value, omit = raw, false
		}
		if omit {
			return nil
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		written++
		return nil
	}

	known := []struct {
		key   string
		value any
		omit  bool
	}{
		{"message", r.Message, false},
		{"phase", r.Phase, r.Phase == ""},
		{"severity", r.Severity, r.Severity == ""},
		{"line", r.Line, r.Line == 0},
		{"column", r.Column, r.Column == 0},
		{"trace", r.Trace, r.Trace == ""},
	}
	seen := make(map[string]bool, len(known))
	for _, f := range known {
		seen[f.key] = true
		if err := write(f.key, f.value, f.omit); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := write(key, nil, false); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
