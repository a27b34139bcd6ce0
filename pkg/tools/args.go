package tools

import (
	"encoding/json"
	"strconv"
)

func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func strsArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func boolArg(args map[string]any, key string) *bool {
	v, ok := args[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// intArg accepts the number encodings JSON decoders produce, plus numeric
// strings, because agents are not picky about types.
func intArg(args map[string]any, key string) *int {
	raw, ok := args[key]
	if !ok {
		return nil
	}
	n, ok := toInt(raw)
	if !ok {
		return nil
	}
	return &n
}

func int64Arg(args map[string]any, key string) *int64 {
	n := intArg(args, key)
	if n == nil {
		return nil
	}
	v := int64(*n)
	return &v
}

func intsArg(args map[string]any, key string) []int {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []int
	for _, v := range raw {
		if n, ok := toInt(v); ok {
			out = append(out, n)
		}
	}
	return out
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
