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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

//Package app loads and prepares the input bundle for the drep analysis.
//The drep program has 5 data inputs, all produced by an upstream preprocessing collaborator:
//An expression matrix csv: one row per gene, one column per patient sample barcode, mRNA expression levels.
//A clinical csv: per sample barcode, survival time in days and event status (1 = death, 0 = censored), aligned to
//the expression matrix column order.
//A subtype annotation csv: per patient barcode (12 characters), ER and HER2 IHC calls and a triple-negative flag.
//A drug signature json: maps a drug index onto the list of gene symbols associated with that drug.
//A drug catalog csv: maps a drug index onto an external catalog ID for cross-referencing.

// Names of the bundle files expected under the input directory.
const (
	ExpressionFile = "expression.csv"
	ClinicalFile   = "clinical.csv"
	SubtypeFile    = "subtypes.csv"
	SignatureFile  = "signatures.json"
	DrugFile       = "drugs.csv"
)

// ClinicalRecord represents the survival outcome for one patient sample.
type ClinicalRecord struct {
	Barcode string  //full sample barcode, matches an expression matrix column
	Days    float64 //survival time in days
	Status  float64 //1 = death observed, 0 = censored
}

// SubtypeAnnotation represents the molecular subtype annotation for one patient.
type SubtypeAnnotation struct {
	Barcode        string //patient barcode, 12 characters
	ERIHC          string //estrogen receptor IHC call: Positive, Negative, Indeterminate, ...
	HER2IHC        string //HER2 IHC call: Positive, Negative, Equivocal, ...
	TripleNegative string //explicit triple-negative flag: Yes/No
}

// Bundle contains all datasets parsed from the input directory.
type Bundle struct {
	Genes      []string                      //gene names, row-aligned with Expression
	Samples    []string                      //sample barcodes, column-aligned with Expression
	Expression [][]float64                   //genes x samples
	Clinical   []*ClinicalRecord             //per sample, in Samples order
	Subtypes   map[string]*SubtypeAnnotation //keyed by patient barcode
	Signatures map[int][]string              //drug index -> gene signature
	DrugIDs    map[int]string                //drug index -> external catalog ID
}

// DrugIndices returns the drug indices of a bundle in ascending order. Drugs are always iterated in this order so
// per-drug seeding lines up across runs.
func (b *Bundle) DrugIndices() []int {
	indices := make([]int, 0, len(b.Signatures))
	for i := range b.Signatures {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// LoadBundle loads the five bundle datasets from a base directory. A missing or malformed dataset is fatal for the
// run: the error names the dataset so the upstream collaborator can be pointed at the right file. The clinical table
// must align positionally with the expression matrix columns.
func LoadBundle(dir string) (*Bundle, error) {
	genes, samples, expression, err := ParseExpressionData(filepath.Join(dir, ExpressionFile))
	if err != nil {
		return nil, fmt.Errorf("expression matrix: %w", err)
	}
	clinical, err := ParseClinicalData(filepath.Join(dir, ClinicalFile))
	if err != nil {
		return nil, fmt.Errorf("clinical table: %w", err)
	}
	if len(clinical) != len(samples) {
		return nil, fmt.Errorf("clinical table: %d records for %d expression samples", len(clinical), len(samples))
	}
	for i, record := range clinical {
		if record.Barcode != samples[i] {
			return nil, fmt.Errorf("clinical table: barcode %s at position %d does not match expression column %s",
				record.Barcode, i, samples[i])
		}
	}
	subtypes, err := ParseSubtypeData(filepath.Join(dir, SubtypeFile))
	if err != nil {
		return nil, fmt.Errorf("subtype annotations: %w", err)
	}
	signatures, err := ParseSignatureData(filepath.Join(dir, SignatureFile))
	if err != nil {
		return nil, fmt.Errorf("drug signatures: %w", err)
	}
	drugIDs, err := ParseDrugCatalog(filepath.Join(dir, DrugFile))
	if err != nil {
		return nil, fmt.Errorf("drug catalog: %w", err)
	}
	return &Bundle{
		Genes:      genes,
		Samples:    samples,
		Expression: expression,
		Clinical:   clinical,
		Subtypes:   subtypes,
		Signatures: signatures,
		DrugIDs:    drugIDs,
	}, nil
}

// ParseExpressionData parses the expression matrix csv. The first column holds the gene name; the remaining column
// headers are sample barcodes. Gene names must be unique.
func ParseExpressionData(file string) ([]string, []string, [][]float64, error) {
	fmt.Println("Parsing expression matrix from file: ", file)
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(header) < 2 {
		return nil, nil, nil, fmt.Errorf("header has %d columns, need a gene column and at least one sample", len(header))
	}
	samples := header[1:]
	genes := []string{}
	expression := [][]float64{}
	seen := map[string]bool{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		gene := record[0]
		if seen[gene] {
			return nil, nil, nil, fmt.Errorf("duplicate gene name %s", gene)
		}
		seen[gene] = true
		row := make([]float64, len(samples))
		for i, v := range record[1:] {
			value, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("gene %s, sample %s: %w", gene, samples[i], err)
			}
			row[i] = value
		}
		genes = append(genes, gene)
		expression = append(expression, row)
	}
	fmt.Println("Parsed ", len(genes), " genes x ", len(samples), " samples.")
	return genes, samples, expression, nil
}

// ParseClinicalData parses the clinical csv with header barcode,days,status.
func ParseClinicalData(file string) ([]*ClinicalRecord, error) {
	fmt.Println("Parsing clinical survival data from file: ", file)
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { //skip header
		return nil, err
	}
	records := []*ClinicalRecord{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("clinical record %v has %d fields, need 3", record, len(record))
		}
		days, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", record[0], err)
		}
		if days < 0 {
			return nil, fmt.Errorf("sample %s: negative survival time %f", record[0], days)
		}
		status, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", record[0], err)
		}
		records = append(records, &ClinicalRecord{Barcode: record[0], Days: days, Status: status})
	}
	return records, nil
}

// ParseSubtypeData parses the subtype annotation csv with header barcode,er_ihc,her2_ihc,triple_negative.
func ParseSubtypeData(file string) (map[string]*SubtypeAnnotation, error) {
	fmt.Println("Parsing subtype annotations from file: ", file)
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { //skip header
		return nil, err
	}
	annotations := map[string]*SubtypeAnnotation{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 4 {
			return nil, fmt.Errorf("subtype record %v has %d fields, need 4", record, len(record))
		}
		annotations[record[0]] = &SubtypeAnnotation{
			Barcode:        record[0],
			ERIHC:          record[1],
			HER2IHC:        record[2],
			TripleNegative: record[3],
		}
	}
	fmt.Println("Parsed subtype annotations for ", len(annotations), " patients.")
	return annotations, nil
}

// ParseSignatureData parses the drug signature json: an object mapping the drug index (as a string) onto an array of
// gene symbols.
func ParseSignatureData(file string) (map[int][]string, error) {
	fmt.Println("Parsing drug gene signatures from file: ", file)
	fileBytes, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}
	raw := map[string][]string{}
	if err := json.Unmarshal(fileBytes, &raw); err != nil {
		return nil, err
	}
	signatures := map[int][]string{}
	for k, genes := range raw {
		index, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("drug index %q: %w", k, err)
		}
		signatures[index] = genes
	}
	fmt.Println("Parsed gene signatures for ", len(signatures), " drugs.")
	return signatures, nil
}

// ParseDrugCatalog parses the drug catalog csv with header index,drugid.
func ParseDrugCatalog(file string) (map[int]string, error) {
	fmt.Println("Parsing drug catalog from file: ", file)
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { //skip header
		return nil, err
	}
	drugIDs := map[int]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("catalog record %v has %d fields, need 2", record, len(record))
		}
		index, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("drug index %q: %w", record[0], err)
		}
		drugIDs[index] = record[1]
	}
	return drugIDs, nil
}
