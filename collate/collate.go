// Package collate merges same-shaped samples into one batched structure and
// normalizes field dtypes for tensor consumption. Both operations are pure
// structural transforms with no knowledge of where the samples came from.
package collate

import (
	"fmt"
	"slices"

	"github.com/quartzind/rowfeed/row"
)

// Rows collates a non-empty slice of same-keyed rows into a single batch row.
// Every numeric leaf in the result has a leading dimension equal to
// len(samples); decimal and byte-string leaves become a Sequence of the
// original values in input order. A single empty row collates to an empty
// row.
func Rows(samples []*row.Row) (*row.Row, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot collate zero rows")
	}
	first := samples[0]
	for i, s := range samples[1:] {
		if err := sameKeys(first, s); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	batch := row.New()
	column := make([]row.Value, len(samples))
	for _, name := range first.Names() {
		for i, s := range samples {
			column[i], _ = s.Get(name)
		}
		v, err := Values(column)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		batch.Set(name, v)
	}
	return batch, nil
}

// Values collates one leaf position (or nested container) across samples.
func Values(samples []row.Value) (row.Value, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot collate zero values")
	}

	// Decimals have no tensor representation. If any sample at this position
	// is a decimal, hand back the original values as a plain sequence instead
	// of attempting numeric coercion.
	for _, s := range samples {
		if _, ok := s.(row.Decimal); ok {
			return row.Sequence(slices.Clone(samples)), nil
		}
	}

	switch first := samples[0].(type) {
	case *row.Array:
		arrs := make([]*row.Array, len(samples))
		for i, s := range samples {
			a, ok := s.(*row.Array)
			if !ok {
				return nil, fmt.Errorf("sample 0 is %s array, sample %d is %T", first.DType, i, s)
			}
			arrs[i] = a
		}
		return stackArrays(arrs)

	case row.Bytes:
		// Byte strings may vary in length; keep them as a sequence.
		for i, s := range samples {
			if _, ok := s.(row.Bytes); !ok {
				return nil, fmt.Errorf("sample 0 is a byte string, sample %d is %T", i, s)
			}
		}
		return row.Sequence(slices.Clone(samples)), nil

	case row.Sequence:
		for i, s := range samples {
			seq, ok := s.(row.Sequence)
			if !ok {
				return nil, fmt.Errorf("sample 0 is a sequence, sample %d is %T", i, s)
			}
			if len(seq) != len(first) {
				return nil, fmt.Errorf("sequence length mismatch: sample 0 has %d elements, sample %d has %d",
					len(first), i, len(seq))
			}
		}
		// Recurse position by position across the transposed samples.
		out := make(row.Sequence, len(first))
		position := make([]row.Value, len(samples))
		for pos := range first {
			for i, s := range samples {
				position[i] = s.(row.Sequence)[pos]
			}
			v, err := Values(position)
			if err != nil {
				return nil, fmt.Errorf("position %d: %w", pos, err)
			}
			out[pos] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot collate values of type %T", samples[0])
}

// sameKeys verifies two rows carry an identical field-name set.
func sameKeys(a, b *row.Row) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("field count mismatch: %d vs %d", a.Len(), b.Len())
	}
	for _, name := range a.Names() {
		if _, ok := b.Get(name); !ok {
			return fmt.Errorf("field %q missing", name)
		}
	}
	return nil
}

// stackArrays concatenates same-dtype, same-shape arrays into one array with
// a new leading dimension. Scalars stack into a 1-D array.
func stackArrays(arrs []*row.Array) (*row.Array, error) {
	first := arrs[0]
	for i, a := range arrs[1:] {
		if a.DType != first.DType {
			return nil, fmt.Errorf("dtype mismatch: sample 0 is %s, sample %d is %s", first.DType, i+1, a.DType)
		}
		if !slices.Equal(a.Shape, first.Shape) {
			return nil, fmt.Errorf("shape mismatch: sample 0 is %v, sample %d is %v", first.Shape, i+1, a.Shape)
		}
	}

	switch first.Data.(type) {
	case []bool:
		return stackTyped[bool](arrs)
	case []int8:
		return stackTyped[int8](arrs)
	case []int16:
		return stackTyped[int16](arrs)
	case []int32:
		return stackTyped[int32](arrs)
	case []int64:
		return stackTyped[int64](arrs)
	case []uint8:
		return stackTyped[uint8](arrs)
	case []uint16:
		return stackTyped[uint16](arrs)
	case []uint32:
		return stackTyped[uint32](arrs)
	case []uint64:
		return stackTyped[uint64](arrs)
	case []float32:
		return stackTyped[float32](arrs)
	case []float64:
		return stackTyped[float64](arrs)
	}
	return nil, fmt.Errorf("unsupported array buffer type %T", first.Data)
}

func stackTyped[T row.Element](arrs []*row.Array) (*row.Array, error) {
	per := arrs[0].Size()
	flat := make([]T, 0, per*len(arrs))
	for i, a := range arrs {
		data, ok := row.Flat[T](a)
		if !ok || len(data) != per {
			return nil, fmt.Errorf("sample %d buffer does not match dtype %s shape %v", i, a.DType, a.Shape)
		}
		flat = append(flat, data...)
	}
	shape := append([]int{len(arrs)}, arrs[0].Shape...)
	return &row.Array{DType: arrs[0].DType, Shape: shape, Data: flat}, nil
}
