// Package csvrows provides a loader.Reader backed by CSV files matching a
// glob pattern. Files are streamed lazily, one record at a time, so large
// datasets never need to fit in memory. Column structure is discovered from
// the first file's header; every file matching the pattern must share it.
package csvrows

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quartzind/rowfeed/loader"
	"github.com/quartzind/rowfeed/row"
)

// ColumnType selects how a CSV column is parsed into a row value.
type ColumnType int

const (
	Float32Column ColumnType = iota
	Float64Column
	Int32Column
	Int64Column
	// DecimalColumn parses into an arbitrary-precision decimal; such fields
	// are never coerced into numeric arrays downstream.
	DecimalColumn
	// StringColumn keeps the raw cell bytes.
	StringColumn
)

// Column names a CSV column to extract and how to parse it. Header matching
// is case-insensitive and ignores surrounding whitespace.
type Column struct {
	Name string
	Type ColumnType
}

// Reader streams rows from CSV files for a configured number of epochs.
// It implements loader.Reader.
type Reader struct {
	pattern string
	paths   []string
	columns []Column
	colIdx  map[string]int
	epochs  int

	epoch   int
	fileIdx int
	file    *os.File
	records *csv.Reader
	done    bool
}

var _ loader.Reader = (*Reader)(nil)

// Open finds all CSV files matching pattern and prepares a reader that emits
// the requested columns for the given number of epochs (0 means unbounded).
func Open(pattern string, columns []Column, epochs int) (*Reader, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns requested")
	}
	if epochs < 0 {
		return nil, fmt.Errorf("epochs must not be negative, got %d", epochs)
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}

	r := &Reader{
		pattern: pattern,
		paths:   paths,
		columns: columns,
		epochs:  epochs,
	}
	if err := r.initializeColumns(); err != nil {
		return nil, err
	}
	return r, nil
}

// initializeColumns reads the first file's header to determine column indices.
func (r *Reader) initializeColumns() error {
	file, err := os.Open(r.paths[0])
	if err != nil {
		return fmt.Errorf("failed to open first CSV %s: %w", r.paths[0], err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	byName := make(map[string]int)
	for i, col := range header {
		byName[strings.TrimSpace(strings.ToLower(col))] = i
	}

	r.colIdx = make(map[string]int, len(r.columns))
	for _, col := range r.columns {
		idx, ok := byName[strings.ToLower(col.Name)]
		if !ok {
			return fmt.Errorf("required column %q not found in CSV header", col.Name)
		}
		r.colIdx[col.Name] = idx
	}
	return nil
}

// Next returns the next row, moving through files and epochs as needed. It
// returns io.EOF once the configured epochs are exhausted.
func (r *Reader) Next() (*row.Row, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		if r.records == nil {
			if err := r.openCurrent(); err != nil {
				return nil, err
			}
		}
		record, err := r.records.Read()
		if err == io.EOF {
			if err := r.closeCurrent(); err != nil {
				return nil, err
			}
			r.fileIdx++
			if r.fileIdx < len(r.paths) {
				continue
			}
			// Epoch boundary.
			r.fileIdx = 0
			r.epoch++
			if r.epochs > 0 && r.epoch >= r.epochs {
				r.done = true
				return nil, io.EOF
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", r.paths[r.fileIdx], err)
		}
		return r.parseRecord(record)
	}
}

func (r *Reader) openCurrent() error {
	file, err := os.Open(r.paths[r.fileIdx])
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	records := csv.NewReader(file)
	if _, err := records.Read(); err != nil {
		file.Close()
		return fmt.Errorf("failed to skip header of %s: %w", r.paths[r.fileIdx], err)
	}
	r.file = file
	r.records = records
	return nil
}

func (r *Reader) closeCurrent() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.records = nil
	return err
}

func (r *Reader) parseRecord(record []string) (*row.Row, error) {
	out := row.New()
	for _, col := range r.columns {
		idx := r.colIdx[col.Name]
		if idx >= len(record) {
			return nil, fmt.Errorf("row has %d cells, column %q expects index %d", len(record), col.Name, idx)
		}
		cell := record[idx]
		switch col.Type {
		case Float32Column:
			v, err := parseFloat32(cell)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", col.Name, err)
			}
			out.Set(col.Name, row.Scalar(v))
		case Float64Column:
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", col.Name, err)
			}
			out.Set(col.Name, row.Scalar(v))
		case Int32Column:
			v, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", col.Name, err)
			}
			out.Set(col.Name, row.Scalar(int32(v)))
		case Int64Column:
			v, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", col.Name, err)
			}
			out.Set(col.Name, row.Scalar(v))
		case DecimalColumn:
			d, err := decimal.NewFromString(strings.TrimSpace(cell))
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", col.Name, err)
			}
			out.Set(col.Name, row.NewDecimal(d))
		case StringColumn:
			out.Set(col.Name, row.Bytes(cell))
		default:
			return nil, fmt.Errorf("column %q has unknown type %d", col.Name, col.Type)
		}
	}
	return out, nil
}

// Epochs returns the configured epoch count (0 means unbounded).
func (r *Reader) Epochs() int {
	return r.epochs
}

// Reset rewinds the reader to the start of the first file and rearms its
// epoch counter.
func (r *Reader) Reset() error {
	if err := r.closeCurrent(); err != nil {
		return err
	}
	r.fileIdx = 0
	r.epoch = 0
	r.done = false
	return nil
}

// Close releases the currently open file, if any.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
