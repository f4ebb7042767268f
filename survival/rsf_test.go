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
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestNelsonAalen(t *testing.T) {
	days := []float64{1, 2, 3}
	status := []float64{1, 1, 1}
	hazard := nelsonAalen(days, status, []int{0, 1, 2})
	want := 1.0/3.0 + 1.0/2.0 + 1.0
	if math.Abs(hazard-want) > 1e-12 {
		t.Errorf("expected cumulative hazard %f, got %f", want, hazard)
	}
	censored := []float64{1, 0, 1}
	hazard = nelsonAalen(days, censored, []int{0, 1, 2})
	want = 1.0/3.0 + 1.0
	if math.Abs(hazard-want) > 1e-12 {
		t.Errorf("censored subject must not add a hazard increment: expected %f, got %f", want, hazard)
	}
	noEvents := []float64{0, 0, 0}
	if hazard = nelsonAalen(days, noEvents, []int{0, 1, 2}); hazard != 0 {
		t.Errorf("all-censored node must have zero mortality, got %f", hazard)
	}
}

func TestLogRank(t *testing.T) {
	days := []float64{1, 2, 3, 4, 5, 100, 101, 102, 103, 104}
	status := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	separated := logRank(days, status, []int{0, 1, 2, 3, 4}, []int{5, 6, 7, 8, 9})
	mixed := logRank(days, status, []int{0, 2, 4, 6, 8}, []int{1, 3, 5, 7, 9})
	if separated <= mixed {
		t.Errorf("well-separated groups should score higher than interleaved groups: %f vs %f", separated, mixed)
	}
	if separated <= 0 {
		t.Errorf("expected a positive log-rank statistic, got %f", separated)
	}
}

func TestGrowSurvivalForestDeterministic(t *testing.T) {
	m := syntheticCohort(50, 3)
	cols := []int{0, 1, 2}
	idx := make([]int, m.NofSamples())
	for i := range idx {
		idx[i] = i
	}
	X := gatherRows(m, cols, idx)
	f1 := GrowSurvivalForest(X, m.Days, m.Status, 20, 99)
	f2 := GrowSurvivalForest(X, m.Days, m.Status, 20, 99)
	for i, x := range X {
		if f1.Predict(x) != f2.Predict(x) {
			t.Fatalf("forests grown with the same seed must predict identically (sample %d)", i)
		}
	}
}

func TestOOBConcordanceRange(t *testing.T) {
	m := syntheticCohort(50, 3)
	idx := make([]int, m.NofSamples())
	for i := range idx {
		idx[i] = i
	}
	X := gatherRows(m, []int{0, 1, 2}, idx)
	f := GrowSurvivalForest(X, m.Days, m.Status, 30, 7)
	c, err := f.OOBConcordance(X, m.Days, m.Status)
	if err != nil {
		t.Fatal(err)
	}
	if c < 0 || c > 1 {
		t.Errorf("out-of-bag concordance out of range: %f", c)
	}
}

func TestForestLearnsRiskGene(t *testing.T) {
	// gene 0 drives survival in the synthetic cohort, so the forest's test concordance should beat random
	m := syntheticCohort(120, 3)
	trainIdx := make([]int, 0, 80)
	testIdx := make([]int, 0, 40)
	// stride 3 keeps both death events (odd i) and censored samples in the test partition
	for i := 0; i < m.NofSamples(); i++ {
		if i%3 == 0 {
			testIdx = append(testIdx, i)
		} else {
			trainIdx = append(trainIdx, i)
		}
	}
	rng := &fastrand.RNG{}
	rng.Seed(DrugSeed(5))
	_, testC, err := fitForestFold(m, []int{0, 1, 2}, trainIdx, testIdx, 100, rng)
	if err != nil {
		t.Fatal(err)
	}
	if testC <= 0.5 {
		t.Errorf("expected test concordance above the 0.5 baseline, got %f", testC)
	}
}
