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
	"os"
	"path/filepath"
	"strconv"

	"drep/survival"
)

// Plotting of per-drug model performance tables

// SubtypeResult collects the per-drug results of one subtype cohort run. Drugs that failed to fit contribute no
// entry: the Results slice stays aligned by append order, and gaps in the drug IDs are expected.
type SubtypeResult struct {
	Subtype string //cohort name, e.g. erpos, her2pos, tnbc
	Method  survival.Method
	Results []*survival.DrugResult
}

// ResultFileName generates the output file name for a subtype run. The name encodes the experiment name, the model
// method, and the subtype: e.g. exp1-cindex-rsf-erpos.csv.
func ResultFileName(name string, r *SubtypeResult) string {
	return fmt.Sprintf("%s-cindex-%s-%s.csv", name, r.Method, r.Subtype)
}

// WriteResultTable writes one subtype's per-drug performance rows as a flat CSV table. The header row is included;
// no row index is persisted. One row per successfully fitted drug, in append order.
func WriteResultTable(r *SubtypeResult, name, path string) {
	fileName := filepath.Join(path, ResultFileName(name, r))
	file, err := os.Create(fileName)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	// print header
	fmt.Fprintf(file, "drug,test.cindex,train.cindex,testindex.sd,trainindex.sd,genecount\n")
	for _, result := range r.Results {
		fmt.Fprintf(file, "%s,%s,%s,%s,%s,%d\n",
			result.Drug,
			strconv.FormatFloat(result.TestCIndex, 'f', 6, 64),
			strconv.FormatFloat(result.TrainCIndex, 'f', 6, 64),
			strconv.FormatFloat(result.TestCIndexSD, 'f', 6, 64),
			strconv.FormatFloat(result.TrainCIndexSD, 'f', 6, 64),
			result.GeneCount)
	}
	fmt.Println("Wrote ", len(r.Results), " result rows to ", fileName)
}
