package main

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/pairlist"
)

// pairDistances returns the separations of the listed pairs that lie
// within cutoff. The list may hold buffer pairs beyond it.
func pairDistances(p *pairlist.PairList, coords geometry.Coordinates3, box *geometry.PeriodicBox, cutoff float64) plotter.Values {
	out := make(plotter.Values, 0, p.NumberOfPairs())
	for i, j := range p.All() {
		r := r3.Norm(box.MinimumImage(r3.Sub(coords[j], coords[i])))
		if r <= cutoff {
			out = append(out, r)
		}
	}
	return out
}

func savePairHistogram(path string, d plotter.Values, bins int, cutoff float64) error {
	if len(d) == 0 {
		return fmt.Errorf("no pairs within %.3f to plot", cutoff)
	}
	p := plot.New()
	p.Title.Text = "Pair distances"
	p.X.Label.Text = "r"
	p.Y.Label.Text = "pairs"
	p.X.Min, p.X.Max = 0, cutoff

	h, err := plotter.NewHist(d, bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
