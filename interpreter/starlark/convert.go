package starlark

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// toGo converts a Starlark value to its JSON-compatible Go form.
func toGo(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		return nil, fmt.Errorf("integer %s out of range", v)
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case *starlark.List:
		return iterableToGo(v, v.Len())
	case starlark.Tuple:
		return iterableToGo(v, v.Len())
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			val, err := toGo(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot pass %s to host", v.Type())
	}
}

func iterableToGo(v starlark.Iterable, n int) ([]any, error) {
	out := make([]any, 0, n)
	iter := v.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		g, err := toGo(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// fromGo converts a host result back into a Starlark value.
func fromGo(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return v, nil
	case bool:
		return starlark.Bool(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case string:
		return starlark.String(v), nil
	case []string:
		elems := make([]starlark.Value, len(v))
		for i, s := range v {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems), nil
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			sv, err := fromGo(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(v))
		for _, k := range keys {
			sv, err := fromGo(v[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported host value %T", v)
	}
}
