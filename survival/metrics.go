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

import "gonum.org/v1/gonum/stat"

// MeanStdDev aggregates per-fold concordance values into an arithmetic mean and a standard deviation.
func MeanStdDev(xs []float64) (float64, float64) {
	return stat.Mean(xs, nil), stat.StdDev(xs, nil)
}

// Concordance computes the exact concordance index of predicted risk scores against observed survival: the
// probability that, for a random comparable pair of subjects, the one with the higher predicted risk has the shorter
// survival time. A pair is comparable when the shorter survival time is an observed death; tied risk scores count as
// half concordant. Cohorts are at most ~1000 patients, so the quadratic pair scan is cheap, and unlike a sampled
// estimate it keeps repeated runs bit-identical.
func Concordance(days, status, score []float64) float64 {
	concordant := 0.0
	comparable := 0.0
	for i := 0; i < len(days); i++ {
		for j := i + 1; j < len(days); j++ {
			shorter, longer := i, j
			if days[j] < days[i] {
				shorter, longer = j, i
			}
			if days[shorter] == days[longer] || status[shorter] == 0 {
				continue
			}
			comparable++
			if score[shorter] > score[longer] {
				concordant++
			} else if score[shorter] == score[longer] {
				concordant += 0.5
			}
		}
	}
	if comparable == 0 {
		return 0.5
	}
	return concordant / comparable
}
