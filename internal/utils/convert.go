package utils

// Float64s attempts to interpret input as one or more literal numeric values.
//
// input may be a float64, float32, any integer type, or a slice ([]float64,
// []float32, []int, []any of the former). The second return value reports
// whether the conversion succeeded; callers decide how to fail.
func Float64s(input interface{}) ([]float64, bool) {
	switch v := input.(type) {
	case float64:
		return []float64{v}, true
	case float32:
		return []float64{float64(v)}, true
	case int:
		return []float64{float64(v)}, true
	case int8:
		return []float64{float64(v)}, true
	case int16:
		return []float64{float64(v)}, true
	case int32:
		return []float64{float64(v)}, true
	case int64:
		return []float64{float64(v)}, true
	case uint:
		return []float64{float64(v)}, true
	case uint8:
		return []float64{float64(v)}, true
	case uint16:
		return []float64{float64(v)}, true
	case uint32:
		return []float64{float64(v)}, true
	case uint64:
		return []float64{float64(v)}, true
	case []float64:
		if len(v) == 0 {
			return nil, false
		}
		r := make([]float64, len(v))
		copy(r, v)
		return r, true
	case []float32:
		if len(v) == 0 {
			return nil, false
		}
		r := make([]float64, len(v))
		for i := range v {
			r[i] = float64(v[i])
		}
		return r, true
	case []int:
		if len(v) == 0 {
			return nil, false
		}
		r := make([]float64, len(v))
		for i := range v {
			r[i] = float64(v[i])
		}
		return r, true
	case []interface{}:
		if len(v) == 0 {
			return nil, false
		}
		r := make([]float64, len(v))
		for i := range v {
			e, ok := Float64s(v[i])
			if !ok || len(e) != 1 {
				return nil, false
			}
			r[i] = e[0]
		}
		return r, true
	default:
		return nil, false
	}
}

// Ints attempts to interpret input as one or more integer ids.
func Ints(input interface{}) ([]int, bool) {
	switch v := input.(type) {
	case int:
		return []int{v}, true
	case int8:
		return []int{int(v)}, true
	case int16:
		return []int{int(v)}, true
	case int32:
		return []int{int(v)}, true
	case int64:
		return []int{int(v)}, true
	case uint:
		return []int{int(v)}, true
	case uint8:
		return []int{int(v)}, true
	case uint16:
		return []int{int(v)}, true
	case uint32:
		return []int{int(v)}, true
	case uint64:
		return []int{int(v)}, true
	case []int:
		r := make([]int, len(v))
		copy(r, v)
		return r, true
	case []interface{}:
		r := make([]int, len(v))
		for i := range v {
			e, ok := Ints(v[i])
			if !ok || len(e) != 1 {
				return nil, false
			}
			r[i] = e[0]
		}
		return r, true
	default:
		return nil, false
	}
}
