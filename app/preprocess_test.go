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

package app

import (
	"testing"

	"drep/survival"
)

func TestPatientBarcode(t *testing.T) {
	if b := PatientBarcode("TCGA-A1-0001-01A"); b != "TCGA-A1-0001" {
		t.Errorf("expected 12-character patient prefix, got %s", b)
	}
	if b := PatientBarcode("SHORT"); b != "SHORT" {
		t.Errorf("short barcodes must pass through unchanged, got %s", b)
	}
}

func TestFilterLowExpressedGenes(t *testing.T) {
	expression := [][]float64{
		{7.0, 8.0, 9.0},  //mean 8.0
		{0.1, 0.2, 0.3},  //mean 0.2
		{5.0, 5.0, 5.0},  //mean 5.0, exactly at the threshold
		{4.0, 4.5, 4.98}, //mean < 5.0
	}
	genes := []string{"HIGH", "LOW", "EDGE", "NEARLY"}
	filtered, filteredGenes, removed := FilterLowExpressedGenes(expression, genes, 5.0)
	if removed != 2 {
		t.Errorf("expected 2 removed genes, got %d", removed)
	}
	if len(filtered) != 2 || len(filteredGenes) != 2 {
		t.Fatalf("expected 2 retained genes, got %d rows and %d names", len(filtered), len(filteredGenes))
	}
	if filteredGenes[0] != "HIGH" || filteredGenes[1] != "EDGE" {
		t.Errorf("gene names not filtered in lockstep with the matrix: %v", filteredGenes)
	}
	if filtered[1][0] != 5.0 {
		t.Errorf("retained rows reordered or corrupted: %v", filtered[1])
	}
}

func testBundle() *Bundle {
	return &Bundle{
		Genes:   []string{"ESR1", "ERBB2|2064", "LOWG"},
		Samples: []string{"TCGA-A1-0001-01A", "TCGA-A1-0002-01A", "TCGA-A1-0003-01A", "TCGA-A1-0004-01A"},
		Expression: [][]float64{
			{7.1, 6.2, 5.9, 8.4},
			{9.0, 8.1, 7.7, 6.5},
			{0.1, 0.2, 0.1, 0.3},
		},
		Clinical: []*ClinicalRecord{
			{Barcode: "TCGA-A1-0001-01A", Days: 1200, Status: 1},
			{Barcode: "TCGA-A1-0002-01A", Days: 430, Status: 0},
			{Barcode: "TCGA-A1-0003-01A", Days: 2890, Status: 1},
			{Barcode: "TCGA-A1-0004-01A", Days: 95, Status: 0},
		},
		Subtypes: map[string]*SubtypeAnnotation{
			"TCGA-A1-0001": {Barcode: "TCGA-A1-0001", ERIHC: "Positive", HER2IHC: "Equivocal", TripleNegative: "No"},
			"TCGA-A1-0002": {Barcode: "TCGA-A1-0002", ERIHC: "negative", HER2IHC: "positive", TripleNegative: "No"},
			"TCGA-A1-0003": {Barcode: "TCGA-A1-0003", ERIHC: "Negative", HER2IHC: "Negative", TripleNegative: "Yes"},
		},
	}
}

func TestBuildModelMatrix(t *testing.T) {
	matrix, removed := BuildModelMatrix(testBundle(), 5.0)
	if removed != 1 {
		t.Errorf("expected 1 removed gene, got %d", removed)
	}
	if matrix.NofSamples() != 4 || len(matrix.Genes) != 2 {
		t.Fatalf("expected a 4 x 2 matrix, got %d x %d", matrix.NofSamples(), len(matrix.Genes))
	}
	if matrix.Genes[0] != "ESR1" || matrix.Genes[1] != "ERBB2|2064" {
		t.Errorf("column headers not taken from the post-filter gene names: %v", matrix.Genes)
	}
	// transposition: sample 2, gene ERBB2 was expression[1][2]
	if matrix.Data[2][1] != 7.7 {
		t.Errorf("transposition broken: got %f", matrix.Data[2][1])
	}
	if matrix.Days[2] != 2890 || matrix.Status[2] != 1 {
		t.Errorf("survival outcome columns misaligned: days %f, status %f", matrix.Days[2], matrix.Status[2])
	}
}

func TestSelectCohortOverlap(t *testing.T) {
	b := testBundle()
	matrix, _ := BuildModelMatrix(b, 5.0)
	er := SelectCohort(matrix, b.Subtypes, ERPositiveAggregator())
	her2 := SelectCohort(matrix, b.Subtypes, HER2PositiveAggregator())
	tnbc := SelectCohort(matrix, b.Subtypes, TripleNegativeAggregator())
	if er.NofSamples() != 1 || er.Barcodes[0] != "TCGA-A1-0001-01A" {
		t.Errorf("ER+ cohort wrong: %v", er.Barcodes)
	}
	// patient 0001 is both ER positive and HER2 equivocal, so it appears in both cohorts
	if her2.NofSamples() != 2 {
		t.Errorf("HER2 cohort should contain the equivocal and the positive patient: %v", her2.Barcodes)
	}
	if tnbc.NofSamples() != 1 || tnbc.Barcodes[0] != "TCGA-A1-0003-01A" {
		t.Errorf("triple-negative cohort wrong: %v", tnbc.Barcodes)
	}
	// patient 0004 has no annotation and belongs to no cohort
	total := er.NofSamples() + her2.NofSamples() + tnbc.NofSamples()
	if total != 4 {
		t.Errorf("cohort membership changed: %d total assignments", total)
	}
	if len(er.Genes) != len(matrix.Genes) {
		t.Errorf("cohort selection must not change the gene columns")
	}
}

func TestAggregators(t *testing.T) {
	er := ERPositiveAggregator()
	if !er(&SubtypeAnnotation{ERIHC: "POSITIVE"}) {
		t.Error("ER matching must be case-insensitive")
	}
	if er(&SubtypeAnnotation{ERIHC: "Indeterminate"}) {
		t.Error("indeterminate ER calls are not positive")
	}
	her2 := HER2PositiveAggregator()
	if !her2(&SubtypeAnnotation{HER2IHC: "Equivocal"}) {
		t.Error("equivocal HER2 calls belong in the HER2 cohort")
	}
	if her2(&SubtypeAnnotation{HER2IHC: "Negative"}) {
		t.Error("negative HER2 calls do not belong in the HER2 cohort")
	}
	tnbc := TripleNegativeAggregator()
	if !tnbc(&SubtypeAnnotation{TripleNegative: "YES"}) {
		t.Error("triple-negative matching must be case-insensitive")
	}
	if tnbc(&SubtypeAnnotation{TripleNegative: "No"}) {
		t.Error("non-flagged patients are not triple-negative")
	}
}

func syntheticBundle(nGenes, nLow, nSamples int) *Bundle {
	b := &Bundle{Subtypes: map[string]*SubtypeAnnotation{}}
	for s := 0; s < nSamples; s++ {
		barcode := "TCGA-ZZ-" + string(rune('1'+s/26)) + string(rune('A'+s%26)) + "00-01A"
		b.Samples = append(b.Samples, barcode)
		b.Clinical = append(b.Clinical, &ClinicalRecord{
			Barcode: barcode,
			Days:    float64(100 + 37*s),
			Status:  float64(s % 2),
		})
		b.Subtypes[PatientBarcode(barcode)] = &SubtypeAnnotation{
			Barcode: PatientBarcode(barcode),
			ERIHC:   "Positive",
		}
	}
	for g := 0; g < nGenes; g++ {
		name := "GENE" + string(rune('A'+g/26)) + string(rune('A'+g%26))
		b.Genes = append(b.Genes, name)
		row := make([]float64, nSamples)
		for s := 0; s < nSamples; s++ {
			if g < nLow {
				row[s] = 0.1 * float64(s%5)
			} else {
				row[s] = 6.0 + float64((g*7+s*13)%40)/10.0
			}
		}
		b.Expression = append(b.Expression, row)
	}
	return b
}

func TestPipelineEndToEnd(t *testing.T) {
	// 20 genes x 50 patients, 5 genes below the expression threshold
	b := syntheticBundle(20, 5, 50)
	matrix, removed := BuildModelMatrix(b, 5.0)
	if removed != 5 {
		t.Fatalf("expected 5 removed genes, got %d", removed)
	}
	if len(matrix.Genes) != 15 || matrix.NofSamples() != 50 {
		t.Fatalf("expected a 50 x 15 matrix, got %d x %d", matrix.NofSamples(), len(matrix.Genes))
	}
	cohort := SelectCohort(matrix, b.Subtypes, ERPositiveAggregator())
	if cohort.NofSamples() != 50 {
		t.Fatalf("all synthetic patients are ER positive, got %d", cohort.NofSamples())
	}
	signature := []string{matrix.Genes[0], matrix.Genes[4], matrix.Genes[9]}
	opts := &survival.TrainerOptions{Method: survival.RSF, Folds: 5, Trees: 30}
	result, err := survival.TrainDrug(cohort, 2, signature, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.GeneCount != 3 {
		t.Errorf("expected 3 matched signature genes, got %d", result.GeneCount)
	}
	if result.TestCIndex < 0 || result.TestCIndex > 1 || result.TrainCIndex < 0 || result.TrainCIndex > 1 {
		t.Errorf("concordance out of range: %+v", result)
	}
	if result.TestCIndexSD < 0 || result.TrainCIndexSD < 0 {
		t.Errorf("negative standard deviation: %+v", result)
	}
}
