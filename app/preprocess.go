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
	"fmt"

	"drep/survival"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"
)

// PatientBarcodeLength is the length of the patient-level barcode prefix. Sample barcodes carry extra suffix detail
// (vial, portion, analyte) that the clinical annotation barcodes lack, so cohort matching uses the first 12
// characters only.
const PatientBarcodeLength = 12

// PatientBarcode returns the patient-level prefix of a full sample barcode.
func PatientBarcode(sampleBarcode string) string {
	if len(sampleBarcode) <= PatientBarcodeLength {
		return sampleBarcode
	}
	return sampleBarcode[:PatientBarcodeLength]
}

// FilterLowExpressedGenes removes gene rows whose mean expression across all samples falls below the threshold.
// Genes with near-zero expression make degenerate predictors downstream. The gene-name vector is filtered in
// lockstep with the matrix rows to keep both aligned. Returns the filtered matrix, the filtered gene names, and the
// number of removed genes.
func FilterLowExpressedGenes(expression [][]float64, genes []string, threshold float64) ([][]float64, []string, int) {
	means := make([]float64, len(expression))
	parallel.Range(0, len(expression), 0, func(low, high int) {
		for i := low; i < high; i++ {
			means[i] = stat.Mean(expression[i], nil)
		}
	})
	filtered := [][]float64{}
	filteredGenes := []string{}
	for i, row := range expression {
		if means[i] >= threshold {
			filtered = append(filtered, row)
			filteredGenes = append(filteredGenes, genes[i])
		}
	}
	return filtered, filteredGenes, len(expression) - len(filtered)
}

// BuildModelMatrix preprocesses a bundle into a sample-major model matrix:
// - filters low-expressed genes (and their names) with the given mean threshold,
// - transposes the expression matrix to rows = patients, columns = genes, reassigning the column headers from the
// post-filter gene names and the row identifiers from the original sample barcodes,
// - appends the survival time and event status columns from the clinical table in the same patient order.
// It returns the model matrix and the number of removed genes.
func BuildModelMatrix(b *Bundle, threshold float64) (*survival.ModelMatrix, int) {
	expression, genes, removed := FilterLowExpressedGenes(b.Expression, b.Genes, threshold)
	fmt.Println("Filtered ", removed, " genes with mean expression below ", threshold, "; ", len(genes), " genes retained.")
	data := make([][]float64, len(b.Samples))
	for s := range b.Samples {
		row := make([]float64, len(genes))
		for g := range genes {
			row[g] = expression[g][s]
		}
		data[s] = row
	}
	days := make([]float64, len(b.Clinical))
	status := make([]float64, len(b.Clinical))
	for i, record := range b.Clinical {
		days[i] = record.Days
		status[i] = record.Status
	}
	return &survival.ModelMatrix{
		Barcodes: b.Samples,
		Genes:    genes,
		Data:     data,
		Days:     days,
		Status:   status,
	}, removed
}

// SelectCohort restricts a model matrix to the patients that satisfy a subtype filter. A sample is kept when its
// patient barcode prefix has an annotation that passes the filter. Cohorts derived from different filters may
// overlap; a patient without annotation belongs to no cohort.
func SelectCohort(m *survival.ModelMatrix, annotations map[string]*SubtypeAnnotation, filter ClinicalFilter) *survival.ModelMatrix {
	barcodes := []string{}
	data := [][]float64{}
	days := []float64{}
	status := []float64{}
	for i, barcode := range m.Barcodes {
		annotation, ok := annotations[PatientBarcode(barcode)]
		if !ok {
			continue
		}
		if filter(annotation) {
			barcodes = append(barcodes, barcode)
			data = append(data, m.Data[i])
			days = append(days, m.Days[i])
			status = append(status, m.Status[i])
		}
	}
	return &survival.ModelMatrix{
		Barcodes: barcodes,
		Genes:    m.Genes,
		Data:     data,
		Days:     days,
		Status:   status,
	}
}
