// Package report writes the per-individual decision table and summarizes a
// selection run.
package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/selection"
)

const (
	StatusRetained = "retained"
	StatusRemoved  = "removed"
)

// Row is one line of the decision report.
type Row struct {
	FID           string `csv:"fid"`
	IID           string `csv:"iid"`
	Phenotype     string `csv:"phenotype"`
	Class         string `csv:"class"`
	Status        string `csv:"status"`
	Component     int    `csv:"component"`
	ComponentSize int    `csv:"component_size"`
	Degree        int    `csv:"degree"`
	RemovalStep   int    `csv:"removal_step"`
}

// Rows returns one row per graph vertex in sample-table order.
func Rows(g *graph.Graph, res *selection.Result) []Row {
	rows := make([]Row, 0, len(g.Order))
	for _, iid := range g.Order {
		ind := g.Vertices[iid]
		d := res.Decisions[iid]
		status := StatusRemoved
		if d.Retained {
			status = StatusRetained
		}
		rows = append(rows, Row{
			FID:           ind.FID,
			IID:           ind.IID,
			Phenotype:     ind.Raw,
			Class:         ind.Class.String(),
			Status:        status,
			Component:     d.Component,
			ComponentSize: d.ComponentSize,
			Degree:        d.Degree,
			RemovalStep:   d.RemovalStep,
		})
	}
	return rows
}

// WriteCSV writes the decision report as CSV with a header line.
func WriteCSV(w io.Writer, g *graph.Graph, res *selection.Result) error {
	rows := Rows(g, res)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Summary describes the related part of a run.
type Summary struct {
	RelatedComponents int
	SizeMean          float64
	SizeMedian        float64
	SizeMax           float64
	DegreeMean        float64 // over related individuals
	DegreeMax         float64
	RemovedDegreeMean float64 // live degree at removal
}

// Stats summarizes component sizes and degrees of the related individuals.
// All fields are zero when no individual is related.
func Stats(res *selection.Result) (Summary, error) {
	sum := Summary{RelatedComponents: res.RelatedComponents}

	sizes := make(map[int]int)
	var degrees, removed []int
	for _, d := range res.Decisions {
		if d.Degree == 0 {
			continue
		}
		sizes[d.Component] = d.ComponentSize
		degrees = append(degrees, d.Degree)
		if !d.Retained {
			removed = append(removed, d.LiveDegree)
		}
	}
	if len(degrees) == 0 {
		return sum, nil
	}

	sizeData := make([]int, 0, len(sizes))
	for _, n := range sizes {
		sizeData = append(sizeData, n)
	}

	var err error
	sd := stats.LoadRawData(sizeData)
	if sum.SizeMean, err = sd.Mean(); err != nil {
		return sum, err
	}
	if sum.SizeMedian, err = sd.Median(); err != nil {
		return sum, err
	}
	if sum.SizeMax, err = sd.Max(); err != nil {
		return sum, err
	}

	dd := stats.LoadRawData(degrees)
	if sum.DegreeMean, err = dd.Mean(); err != nil {
		return sum, err
	}
	if sum.DegreeMax, err = dd.Max(); err != nil {
		return sum, err
	}

	if len(removed) > 0 {
		if sum.RemovedDegreeMean, err = stats.LoadRawData(removed).Mean(); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
