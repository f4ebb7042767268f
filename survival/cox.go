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

package survival

import (
	"fmt"
	"math"

	"github.com/kshedden/statmodel/duration"
	"github.com/kshedden/statmodel/statmodel"
)

// fitCoxFold fits an unpenalized Cox proportional hazards model on the training partition and evaluates concordance
// on both partitions from the predicted risk scores. The fitting routine can fail numerically on degenerate predictor
// matrices; construction and fit errors are returned as-is, and a panic raised inside the optimizer is converted into
// an error, so one pathological gene signature does not abort an entire subtype run.
func fitCoxFold(m *ModelMatrix, cols []int, trainIdx, testIdx []int) (trainC, testC float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cox fit failed: %v", r)
		}
	}()
	if len(cols) == 0 {
		return 0, 0, ErrNoMatchedGenes
	}
	// column-major dataset: gene columns, then days and status
	da := make([][]float64, 0, len(cols)+2)
	names := make([]string, 0, len(cols)+2)
	xnames := make([]string, 0, len(cols))
	for _, c := range cols {
		da = append(da, gatherColumn(m, c, trainIdx))
		names = append(names, m.Genes[c])
		xnames = append(xnames, m.Genes[c])
	}
	trainDays, trainStatus := gatherOutcome(m, trainIdx)
	da = append(da, trainDays, trainStatus)
	names = append(names, "days", "status")
	ds := statmodel.NewDataset(da, names)
	ph, err := duration.NewPHReg(ds, "days", "status", xnames, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("cox fit failed: %w", err)
	}
	rslt, err := ph.Fit()
	if err != nil {
		return 0, 0, fmt.Errorf("cox fit failed: %w", err)
	}
	params := rslt.Params()
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, 0, fmt.Errorf("cox fit produced non-finite coefficients")
		}
	}
	trainScores := riskScores(m, cols, trainIdx, params)
	testScores := riskScores(m, cols, testIdx, params)
	testDays, testStatus := gatherOutcome(m, testIdx)
	trainC = Concordance(trainDays, trainStatus, trainScores)
	testC = Concordance(testDays, testStatus, testScores)
	return trainC, testC, nil
}

// riskScores computes the linear predictor x*beta for a set of rows. Higher scores mean higher predicted hazard.
func riskScores(m *ModelMatrix, cols []int, idx []int, params []float64) []float64 {
	scores := make([]float64, len(idx))
	for i, r := range idx {
		s := 0.0
		for j, c := range cols {
			s += params[j] * m.Data[r][c]
		}
		scores[i] = s
	}
	return scores
}
