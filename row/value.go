package row

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Value is one field value in a Row. It is a closed set of variants so
// downstream code (collation, sanitization) can dispatch with a type switch:
//
//	*Array   - fixed-shape numeric array or scalar
//	Decimal  - arbitrary-precision decimal, never representable as a tensor
//	Bytes    - raw byte string
//	Sequence - ordered list of Values
type Value interface {
	isValue()
}

// Array is a fixed-shape numeric value stored as a flat buffer plus shape
// metadata. A scalar is an Array with an empty shape. Data holds a []T whose
// element type matches DType and whose length is the product of Shape.
type Array struct {
	DType DType
	Shape []int
	Data  any
}

func (*Array) isValue() {}

// NewArray builds an Array from a flat buffer and its dimensions. The product
// of dims must equal len(data); no dims means a scalar and requires a single
// element.
func NewArray[T Element](data []T, dims ...int) (*Array, error) {
	size := 1
	for _, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d in shape %v", d, dims)
		}
		size *= d
	}
	if size != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, buffer has %d", dims, size, len(data))
	}
	return &Array{DType: dtypeOf[T](), Shape: dims, Data: data}, nil
}

// MustArray is NewArray that panics on invalid shape. Intended for literals.
func MustArray[T Element](data []T, dims ...int) *Array {
	a, err := NewArray(data, dims...)
	if err != nil {
		panic(err)
	}
	return a
}

// Scalar wraps a single element as a zero-dimensional Array.
func Scalar[T Element](v T) *Array {
	return &Array{DType: dtypeOf[T](), Shape: []int{}, Data: []T{v}}
}

// Size returns the number of elements in the Array.
func (a *Array) Size() int {
	size := 1
	for _, d := range a.Shape {
		size *= d
	}
	return size
}

// Flat returns the Array's buffer as a typed slice, or false when T does not
// match the Array's element type.
func Flat[T Element](a *Array) ([]T, bool) {
	data, ok := a.Data.([]T)
	return data, ok
}

// Decimal is an arbitrary-precision decimal field value. It has no tensor
// representation and is carried through collation untouched.
type Decimal struct {
	decimal.Decimal
}

func (Decimal) isValue() {}

// NewDecimal wraps a decimal.Decimal as a Value.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{d}
}

// Bytes is a raw byte-string field value.
type Bytes []byte

func (Bytes) isValue() {}

// Sequence is an ordered list of Values. Collation of sequences recurses
// position by position and requires equal lengths across samples.
type Sequence []Value

func (Sequence) isValue() {}
