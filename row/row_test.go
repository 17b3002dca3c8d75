package row

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewArrayValidatesShape(t *testing.T) {
	if _, err := NewArray([]float32{1, 2, 3}, 2, 2); err == nil {
		t.Fatalf("expected error for 3 elements with shape [2 2]")
	}
	if _, err := NewArray([]float32{1, 2, 3, 4}, 2, -2); err == nil {
		t.Fatalf("expected error for negative dimension")
	}
	a, err := NewArray([]float32{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatalf("NewArray failed: %v", err)
	}
	if a.DType != Float32 {
		t.Fatalf("expected dtype float32, got %s", a.DType)
	}
	if a.Size() != 4 {
		t.Fatalf("expected size 4, got %d", a.Size())
	}
}

func TestScalarHasEmptyShape(t *testing.T) {
	s := Scalar(int32(7))
	if len(s.Shape) != 0 {
		t.Fatalf("expected empty shape, got %v", s.Shape)
	}
	if s.DType != Int32 {
		t.Fatalf("expected dtype int32, got %s", s.DType)
	}
	data, ok := Flat[int32](s)
	if !ok || len(data) != 1 || data[0] != 7 {
		t.Fatalf("unexpected scalar buffer: %v ok=%v", data, ok)
	}
}

func TestFlatRejectsWrongType(t *testing.T) {
	a := MustArray([]int64{1, 2}, 2)
	if _, ok := Flat[float32](a); ok {
		t.Fatalf("Flat should reject a mismatched element type")
	}
}

func TestRowKeepsInsertionOrder(t *testing.T) {
	r := New().
		Set("b", Scalar(int64(1))).
		Set("a", Scalar(int64(2))).
		Set("c", NewDecimal(decimal.NewFromInt(3)))
	// Overwriting must not change order.
	r.Set("b", Scalar(int64(9)))

	want := []string{"b", "a", "c"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("name order mismatch at %d: got %v want %v", i, got, want)
		}
	}
	v, ok := r.Get("b")
	if !ok {
		t.Fatalf("missing field b")
	}
	data, _ := Flat[int64](v.(*Array))
	if data[0] != 9 {
		t.Fatalf("overwrite lost: got %d", data[0])
	}
}

func TestRowClone(t *testing.T) {
	r := New().Set("x", Scalar(float32(1)))
	c := r.Clone()
	c.Set("y", Scalar(float32(2)))
	if r.Len() != 1 {
		t.Fatalf("clone mutation leaked into original: %d fields", r.Len())
	}
	if c.Len() != 2 {
		t.Fatalf("clone should have 2 fields, got %d", c.Len())
	}
}
