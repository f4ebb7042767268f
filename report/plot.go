// DREP: Drug Repurposing Survival Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/drep/blob/master/LICENSE.txt>.

package report

import (
	"fmt"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotConcordanceRanking plots the test concordance of one subtype's drugs against their rank, best first. The plot
// gives a quick visual of how many repurposing candidates beat the 0.5 random-baseline and how steep the drop-off
// is.
func PlotConcordanceRanking(r *SubtypeResult, name, path string) error {
	ranked := make([]float64, len(r.Results))
	for i, result := range r.Results {
		ranked[i] = result.TestCIndex
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Test concordance by drug rank (%s, %s)", r.Subtype, r.Method)
	p.X.Label.Text = "Drug rank"
	p.Y.Label.Text = "Test concordance index"
	pts := make(plotter.XYs, len(ranked))
	for i, c := range ranked {
		pts[i].X = float64(i + 1)
		pts[i].Y = c
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	p.Add(scatter)
	baseline := plotter.XYs{
		{X: 1, Y: 0.5},
		{X: float64(len(ranked)), Y: 0.5},
	}
	line, err := plotter.NewLine(baseline)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1)
	p.Add(line)
	fileName := filepath.Join(path, fmt.Sprintf("%s-cindex-%s-%s.png", name, r.Method, r.Subtype))
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}
