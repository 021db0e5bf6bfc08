package commands

import "fmt"

// Param readers assume shape validation already ran at the dispatch
// boundary; they only coerce and default.

func stringParam(params map[string]any, name, fallback string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return fallback
}

func numberParam(params map[string]any, name string, fallback float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// pointParam reads an [x, y, z] coordinate list, defaulting to the origin.
func pointParam(params map[string]any, name string) ([3]float64, error) {
	raw, ok := params[name].([]any)
	if !ok {
		return [3]float64{}, nil
	}
	if len(raw) != 3 {
		return [3]float64{}, fmt.Errorf("%s must have exactly 3 coordinates", name)
	}
	var out [3]float64
	for i, v := range raw {
		n, ok := v.(float64)
		if !ok {
			return [3]float64{}, fmt.Errorf("%s coordinates must be numbers", name)
		}
		out[i] = n
	}
	return out, nil
}

// colorParam reads an [r, g, b] byte list, defaulting to black.
func colorParam(params map[string]any, name string) ([3]uint8, error) {
	raw, ok := params[name].([]any)
	if !ok {
		return [3]uint8{}, nil
	}
	if len(raw) != 3 {
		return [3]uint8{}, fmt.Errorf("%s must have exactly 3 channels", name)
	}
	var out [3]uint8
	for i, v := range raw {
		n, ok := v.(float64)
		if !ok || n < 0 || n > 255 {
			return [3]uint8{}, fmt.Errorf("%s channels must be numbers in 0..255", name)
		}
		out[i] = uint8(n)
	}
	return out, nil
}
