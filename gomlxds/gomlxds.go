// Package gomlxds adapts a batched loader into a gomlx train.Dataset so the
// loader's shuffling, caching and epoch semantics can feed a gomlx training
// loop directly. Batch fields are converted to gomlx tensors; decimal and
// byte-string fields have no tensor form and are rejected when selected as
// inputs or labels.
package gomlxds

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/quartzind/rowfeed/loader"
	"github.com/quartzind/rowfeed/row"
)

// Dataset exposes a BatchedLoader as a train.Dataset. Yield returns one
// tensor per configured input and label field, in the configured order.
type Dataset struct {
	name        string
	loader      *loader.BatchedLoader
	inputFields []string
	labelFields []string

	it *loader.BatchedIterator
}

var _ train.Dataset = (*Dataset)(nil)

// New builds a Dataset streaming batches from l. inputFields and labelFields
// name the batch fields converted into the Yield inputs and labels.
func New(name string, l *loader.BatchedLoader, inputFields, labelFields []string) *Dataset {
	return &Dataset{
		name:        name,
		loader:      l,
		inputFields: inputFields,
		labelFields: labelFields,
	}
}

// Name implements train.Dataset.
func (d *Dataset) Name() string {
	return d.name
}

// Yield implements train.Dataset. It returns io.EOF when the underlying pass
// is exhausted; call Reset to begin the next pass.
func (d *Dataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.it == nil {
		it, err := d.loader.Iterate()
		if err != nil {
			return nil, nil, nil, err
		}
		d.it = it
	}
	batch, err := d.it.Next()
	if err == io.EOF {
		return nil, nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, err = fieldTensors(batch, d.inputFields)
	if err != nil {
		return nil, nil, nil, err
	}
	labels, err = fieldTensors(batch, d.labelFields)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, inputs, labels, nil
}

// Reset implements train.Dataset: it abandons the current pass (if any) so
// the next Yield starts a fresh one.
func (d *Dataset) Reset() {
	if d.it != nil {
		d.it.Close()
		d.it = nil
		return
	}
	klog.V(1).Infof("dataset %s reset before any Yield", d.name)
}

func fieldTensors(batch *row.Row, fields []string) ([]*tensors.Tensor, error) {
	out := make([]*tensors.Tensor, len(fields))
	for i, name := range fields {
		v, ok := batch.Get(name)
		if !ok {
			return nil, errors.Errorf("batch has no field %q", name)
		}
		arr, ok := v.(*row.Array)
		if !ok {
			return nil, errors.Errorf("field %q has no tensor representation (%T)", name, v)
		}
		t, err := tensorFromArray(arr)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", name)
		}
		out[i] = t
	}
	return out, nil
}

func tensorFromArray(a *row.Array) (*tensors.Tensor, error) {
	switch data := a.Data.(type) {
	case []int8:
		return tensorFromFlat(data, a.Shape)
	case []int16:
		return tensorFromFlat(data, a.Shape)
	case []int32:
		return tensorFromFlat(data, a.Shape)
	case []int64:
		return tensorFromFlat(data, a.Shape)
	case []uint8:
		return tensorFromFlat(data, a.Shape)
	case []uint16:
		return tensorFromFlat(data, a.Shape)
	case []uint32:
		return tensorFromFlat(data, a.Shape)
	case []uint64:
		return tensorFromFlat(data, a.Shape)
	case []float32:
		return tensorFromFlat(data, a.Shape)
	case []float64:
		return tensorFromFlat(data, a.Shape)
	case []bool:
		return tensorFromFlat(data, a.Shape)
	}
	return nil, errors.Errorf("unsupported array buffer type %T", a.Data)
}

// tensorFromFlat reshapes a flat buffer into nested slices and hands them to
// tensors.FromAnyValue. Batches are at most rank 3 here (batch of per-sample
// matrices); higher ranks are not produced by the collator for CSV-shaped
// data and are rejected.
func tensorFromFlat[T row.Element](flat []T, shape []int) (*tensors.Tensor, error) {
	switch len(shape) {
	case 0:
		return tensors.FromAnyValue(flat[0]), nil
	case 1:
		return tensors.FromAnyValue(flat), nil
	case 2:
		rows := make([][]T, shape[0])
		for i := range rows {
			rows[i] = flat[i*shape[1] : (i+1)*shape[1]]
		}
		return tensors.FromAnyValue(rows), nil
	case 3:
		out := make([][][]T, shape[0])
		idx := 0
		for i := range out {
			out[i] = make([][]T, shape[1])
			for j := range out[i] {
				out[i][j] = flat[idx : idx+shape[2]]
				idx += shape[2]
			}
		}
		return tensors.FromAnyValue(out), nil
	}
	return nil, errors.Errorf("cannot convert rank-%d array to a tensor", len(shape))
}
