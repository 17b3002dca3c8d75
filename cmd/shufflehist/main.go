// Command shufflehist visualizes the randomization quality of the loader's
// shuffling buffer: it streams rows carrying their own insertion index
// through a record loader, measures how far each row was displaced from its
// original position, and renders a displacement histogram with gonum/plot.
//
// By default it generates a synthetic sequential dataset; with -pattern it
// reads ids from CSV files instead.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/quartzind/rowfeed/csvrows"
	"github.com/quartzind/rowfeed/loader"
	"github.com/quartzind/rowfeed/row"
)

var (
	pattern  = flag.String("pattern", "", "optional CSV glob; when empty a synthetic sequential dataset is used")
	idColumn = flag.String("id-column", "id", "CSV column holding the 0-based insertion index")
	rows     = flag.Int("rows", 10000, "synthetic row count")
	capacity = flag.Int("capacity", 1000, "shuffling buffer capacity (0 disables shuffling)")
	seed     = flag.Int64("seed", 42, "random seed for the shuffling buffer")
	bins     = flag.Int("bins", 50, "histogram bin count")
	out      = flag.String("out", "shuffle_hist.png", "output PNG path")
)

// seqReader is a synthetic loader.Reader emitting rows whose id equals their
// position in the stream.
type seqReader struct {
	n, pos int
}

func (s *seqReader) Next() (*row.Row, error) {
	if s.pos >= s.n {
		return nil, io.EOF
	}
	id := int64(s.pos)
	s.pos++
	return row.New().Set("id", row.Scalar(id)), nil
}

func (s *seqReader) Epochs() int { return 1 }

func (s *seqReader) Reset() error {
	s.pos = 0
	return nil
}

func (s *seqReader) Close() error { return nil }

func main() {
	flag.Parse()

	var (
		source loader.Reader
		err    error
	)
	if *pattern != "" {
		source, err = csvrows.Open(*pattern, []csvrows.Column{{Name: *idColumn, Type: csvrows.Int64Column}}, 1)
		if err != nil {
			log.Fatalf("failed to open CSV source: %v", err)
		}
	} else {
		source = &seqReader{n: *rows}
	}

	l, err := loader.New(source,
		loader.WithShufflingCapacity(*capacity),
		loader.WithSeed(*seed))
	if err != nil {
		log.Fatalf("failed to build loader: %v", err)
	}
	defer l.Close()

	displacements, err := measure(l, *idColumn)
	if err != nil {
		log.Fatalf("failed to measure displacements: %v", err)
	}
	if len(displacements) == 0 {
		log.Fatalf("source produced no rows")
	}

	var max, sum float64
	for _, d := range displacements {
		sum += d
		if d > max {
			max = d
		}
	}
	fmt.Printf("rows: %d\ncapacity: %d\nmean displacement: %.1f\nmax displacement: %.0f\n",
		len(displacements), *capacity, sum/float64(len(displacements)), max)

	if err := render(displacements, *bins, *out); err != nil {
		log.Fatalf("failed to render histogram: %v", err)
	}
	fmt.Printf("wrote %s\n", *out)
}

// measure runs one full pass and returns |emission index - insertion index|
// per row.
func measure(l *loader.Loader, idColumn string) ([]float64, error) {
	it, err := l.Iterate()
	if err != nil {
		return nil, err
	}
	var out []float64
	for pos := 0; ; pos++ {
		r, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		v, ok := r.Get(idColumn)
		if !ok {
			return nil, fmt.Errorf("row has no %q field", idColumn)
		}
		ids, ok := row.Flat[int64](v.(*row.Array))
		if !ok {
			return nil, fmt.Errorf("field %q is not int64", idColumn)
		}
		d := float64(ids[0]) - float64(pos)
		if d < 0 {
			d = -d
		}
		out = append(out, d)
	}
}

func render(displacements []float64, bins int, path string) error {
	p := plot.New()
	p.Title.Text = "Shuffling buffer displacement"
	p.X.Label.Text = "|emission index - insertion index|"
	p.Y.Label.Text = "rows"

	hist, err := plotter.NewHist(plotter.Values(displacements), bins)
	if err != nil {
		return err
	}
	p.Add(hist)
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
