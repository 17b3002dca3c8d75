package collate

import "github.com/quartzind/rowfeed/row"

// Tensor backends accept only a subset of the dtypes a columnar source can
// produce. Sanitize widens the unsupported ones to the smallest width that
// preserves every representable value:
//
//	bool   -> uint8
//	int8   -> int16
//	uint16 -> int32
//	uint32 -> int64
//
// Widening only; already-supported dtypes and non-Array values are left
// untouched, so sanitizing twice is a no-op.
func Sanitize(r *row.Row) {
	for _, name := range r.Names() {
		v, _ := r.Get(name)
		arr, ok := v.(*row.Array)
		if !ok {
			continue
		}
		if widened := widen(arr); widened != nil {
			r.Set(name, widened)
		}
	}
}

// widen returns a widened copy of a, or nil when a's dtype is already
// supported.
func widen(a *row.Array) *row.Array {
	switch a.DType {
	case row.Bool:
		src := a.Data.([]bool)
		out := make([]uint8, len(src))
		for i, v := range src {
			if v {
				out[i] = 1
			}
		}
		return &row.Array{DType: row.Uint8, Shape: a.Shape, Data: out}
	case row.Int8:
		return &row.Array{DType: row.Int16, Shape: a.Shape, Data: widenSlice[int8, int16](a.Data.([]int8))}
	case row.Uint16:
		return &row.Array{DType: row.Int32, Shape: a.Shape, Data: widenSlice[uint16, int32](a.Data.([]uint16))}
	case row.Uint32:
		return &row.Array{DType: row.Int64, Shape: a.Shape, Data: widenSlice[uint32, int64](a.Data.([]uint32))}
	}
	return nil
}

func widenSlice[S int8 | uint16 | uint32, D int16 | int32 | int64](src []S) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = D(v)
	}
	return out
}
