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
	"errors"
	"fmt"
	"math"
	"strings"

	"drep/utils"

	"github.com/valyala/fastrand"
)

// ModelMatrix is a sample-major expression matrix with survival outcome columns. Rows are patient samples, columns
// are genes. Days and Status hold the survival time (days) and event status (1 = death, 0 = censored) per row, in the
// same order as Barcodes.
type ModelMatrix struct {
	Barcodes []string    //row identifiers, full sample barcodes
	Genes    []string    //column headers, post-filter gene names
	Data     [][]float64 //len(Barcodes) rows x len(Genes) columns
	Days     []float64
	Status   []float64
}

// NofSamples returns the number of patient samples (rows) in a model matrix.
func (m *ModelMatrix) NofSamples() int {
	return len(m.Barcodes)
}

// Method selects the survival model fitted per fold.
type Method int

const (
	Cox Method = iota //Cox proportional hazards, no penalty
	RSF               //random survival forest
)

// String returns the method name as it appears in output file names.
func (m Method) String() string {
	if m == Cox {
		return "cox"
	}
	return "rsf"
}

// TrainerOptions configures the per-drug cross-validated trainer.
type TrainerOptions struct {
	Method          Method
	Folds           int //nr of cross-validation folds
	SmallFolds      int //if > 0, cohorts smaller than SmallCohortSize use this fold count instead
	SmallCohortSize int
	Trees           int //ensemble size for the random survival forest
}

// DrugResult holds the cross-validated performance of one drug's gene signature on one cohort.
type DrugResult struct {
	Index         int    //drug analysis index
	Drug          string //external catalog ID
	TestCIndex    float64
	TrainCIndex   float64
	TestCIndexSD  float64
	TrainCIndexSD float64
	GeneCount     int //nr of signature genes matched in the expression matrix
}

// ErrNoMatchedGenes is returned when none of a drug's signature genes occur in the expression matrix, so the
// predictor matrix has no feature columns to fit on.
var ErrNoMatchedGenes = errors.New("no signature genes matched in the expression matrix")

// SelectSignatureColumns matches a drug's gene signature against the matrix column names and returns the indices of
// the matching columns. Matching is exact and case-insensitive, against the whole column name or any of its tokens,
// so a short gene symbol does not spuriously match inside a longer column name: "ABC" matches "ABC" and "ABC|5243"
// but not "ABCD" or "XABC", and a hyphenated symbol like "HLA-DRB1" matches its identical column name.
func SelectSignatureColumns(genes []string, signature []string) []int {
	cols := []int{}
	for i, gene := range genes {
		tokens := utils.Tokens(gene)
		for _, sym := range signature {
			if strings.EqualFold(gene, sym) || matchToken(tokens, sym) {
				cols = append(cols, i)
				break
			}
		}
	}
	return cols
}

func matchToken(tokens []string, sym string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, sym) {
			return true
		}
	}
	return false
}

// foldAssignments shuffles the sample indices with the drug's generator and deals them over k folds. Fold membership
// is fully determined by the generator state, so reseeding per drug reproduces identical folds across runs.
func foldAssignments(n, k int, rng *fastrand.RNG) [][]int {
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = i
	}
	// Fisher-Yates with the per-drug generator
	for i := n - 1; i > 0; i-- {
		j := int(rng.Uint32n(uint32(i + 1)))
		indices[i], indices[j] = indices[j], indices[i]
	}
	folds := make([][]int, k)
	for i, idx := range indices {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}

// DrugSeed derives the generator seed for a drug index. The offset keeps drug 0 away from the all-zero generator
// state.
func DrugSeed(index int) uint32 {
	return uint32(index) + 1
}

// TrainDrug runs k-fold cross-validated survival model fitting for one drug's gene signature on one cohort. It
// returns the aggregated train/test concordance statistics, or an error when model fitting fails for any fold. A
// failed drug produces no partial result; the caller is expected to log the error and continue with the next drug.
func TrainDrug(m *ModelMatrix, index int, signature []string, opts *TrainerOptions) (*DrugResult, error) {
	cols := SelectSignatureColumns(m.Genes, signature)
	n := m.NofSamples()
	k := opts.Folds
	if opts.SmallFolds > 0 && n < opts.SmallCohortSize {
		k = opts.SmallFolds
	}
	if n < 2*k {
		return nil, fmt.Errorf("cohort of %d samples too small for %d folds", n, k)
	}
	if err := checkFinite(m, cols); err != nil {
		return nil, err
	}
	// reseed deterministically per drug so repeated runs reproduce identical folds and model randomness
	rng := &fastrand.RNG{}
	rng.Seed(DrugSeed(index))
	folds := foldAssignments(n, k, rng)
	testCs := make([]float64, 0, k)
	trainCs := make([]float64, 0, k)
	for f := 0; f < k; f++ {
		trainIdx, testIdx := splitFold(folds, f)
		var trainC, testC float64
		var err error
		switch opts.Method {
		case Cox:
			trainC, testC, err = fitCoxFold(m, cols, trainIdx, testIdx)
		default:
			trainC, testC, err = fitForestFold(m, cols, trainIdx, testIdx, opts.Trees, rng)
		}
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		trainCs = append(trainCs, trainC)
		testCs = append(testCs, testC)
	}
	testMean, testSD := MeanStdDev(testCs)
	trainMean, trainSD := MeanStdDev(trainCs)
	return &DrugResult{
		Index:         index,
		TestCIndex:    testMean,
		TrainCIndex:   trainMean,
		TestCIndexSD:  testSD,
		TrainCIndexSD: trainSD,
		GeneCount:     len(cols),
	}, nil
}

// splitFold returns the train and test index sets for fold f.
func splitFold(folds [][]int, f int) ([]int, []int) {
	testIdx := folds[f]
	trainIdx := []int{}
	for i, fold := range folds {
		if i == f {
			continue
		}
		trainIdx = append(trainIdx, fold...)
	}
	return trainIdx, testIdx
}

// checkFinite rejects predictor matrices with non-finite values before they reach the native fitting routines.
func checkFinite(m *ModelMatrix, cols []int) error {
	for i, row := range m.Data {
		for _, c := range cols {
			if math.IsNaN(row[c]) || math.IsInf(row[c], 0) {
				return fmt.Errorf("non-finite expression value for sample %s, gene %s", m.Barcodes[i], m.Genes[c])
			}
		}
		if math.IsNaN(m.Days[i]) || math.IsInf(m.Days[i], 0) || math.IsNaN(m.Status[i]) {
			return fmt.Errorf("non-finite survival outcome for sample %s", m.Barcodes[i])
		}
	}
	return nil
}

// gatherColumn copies the values of one matrix column for a set of row indices.
func gatherColumn(m *ModelMatrix, col int, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = m.Data[r][col]
	}
	return out
}

// gatherOutcome copies the survival time and event status for a set of row indices.
func gatherOutcome(m *ModelMatrix, idx []int) ([]float64, []float64) {
	days := make([]float64, len(idx))
	status := make([]float64, len(idx))
	for i, r := range idx {
		days[i] = m.Days[r]
		status[i] = m.Status[r]
	}
	return days, status
}
