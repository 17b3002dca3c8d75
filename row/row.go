// Package row defines the record data model shared by the reader, shuffling
// and collation layers: an insertion-ordered mapping from field name to a
// tagged Value variant. Rows drawn from one source are schema-homogeneous;
// the same field names appear in every Row.
package row

import "fmt"

// Row is one record: an ordered mapping from field name to Value. The zero
// value is not usable; construct with New.
type Row struct {
	names  []string
	values map[string]Value
}

// New returns an empty Row.
func New() *Row {
	return &Row{values: make(map[string]Value)}
}

// Set stores a value under name, keeping first-insertion order for new names.
// It returns the Row so calls can be chained when building rows by hand.
func (r *Row) Set(name string, v Value) *Row {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
	return r
}

// Get returns the value stored under name.
func (r *Row) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns the field names in insertion order. The returned slice is
// shared; callers must not modify it.
func (r *Row) Names() []string {
	return r.names
}

// Len returns the number of fields.
func (r *Row) Len() int {
	return len(r.names)
}

// Clone returns a shallow copy: field order and the name->Value mapping are
// copied, the Values themselves are shared.
func (r *Row) Clone() *Row {
	c := &Row{
		names:  append([]string(nil), r.names...),
		values: make(map[string]Value, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

func (r *Row) String() string {
	return fmt.Sprintf("Row(%d fields: %v)", len(r.names), r.names)
}
