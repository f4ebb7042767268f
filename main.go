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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"drep/app"
	"drep/report"
	"drep/survival"
)

/*
Drep is a tool for ranking drug repurposing candidates in breast cancer by survival model performance.

Usage:
	drep bundlePath outputPath [flags]

Example:
	drep ./brca_bundle/ ./results/ --method rsf --folds 10 --trees 500 --minExpr 5.0 --name brca --plot

The tool loads a gene expression matrix, clinical survival outcomes, molecular subtype annotations, and per-drug gene
signatures from the bundle directory. It partitions the patients into subtype cohorts (ER positive, HER2 positive or
equivocal, triple-negative) and, per cohort, fits for every drug a k-fold cross-validated survival model over the
drug's gene signature. The per-drug train/test concordance statistics are written as one flat CSV table per subtype.

The flags are:

--method cox | rsf
	The survival model fitted per fold. cox fits an unpenalized Cox proportional hazards regression; rsf grows a
	random survival forest with a fixed ensemble size. The method is encoded in the output file names.
--folds nr
	The number of cross-validation folds.
--smallFolds nr
	If set to a value > 0, cohorts with fewer patients than --smallCohort use this fold count instead of --folds.
	The default of 0 disables the branch, so all cohorts use --folds regardless of size.
--smallCohort nr
	The cohort size below which --smallFolds applies.
--minExpr nr
	The mean expression threshold for the gene filter. Genes whose mean expression across all samples falls below
	this value are removed before analysis.
--trees nr
	The ensemble size for the random survival forest.
--name string
	Sets the name of the experiment. This name is used to generate names for output files.
--plot
	If this flag is passed, a ranked test-concordance plot is written per subtype in addition to the CSV table.
--nrOfThreads nr
	The number of threads drep uses.
*/

const (
	programVersion = 0.1
	programName    = "drep"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

const drepHelp = "\ndrep parameters:\n" +
	"drep bundlePath outputPath \n" +
	"[--method cox|rsf]\n" +
	"[--folds nr]\n" +
	"[--smallFolds nr]\n" +
	"[--smallCohort nr]\n" +
	"[--minExpr nr]\n" +
	"[--trees nr]\n" +
	"[--name string]\n" +
	"[--plot]\n" +
	"[--nrOfThreads nr]\n"

func parseFlags(flags flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprint(os.Stderr, err)
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprint(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func getFileName(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

func getMethod(s, help string) survival.Method {
	switch s {
	case "cox":
		return survival.Cox
	case "rsf":
		return survival.RSF
	default:
		fmt.Fprintln(os.Stderr, "Unknown method: ", s)
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return survival.RSF
}

// subtypeCohorts lists the analyzed subtype cohorts in a fixed order. Cohorts are derived filters and may overlap: a
// patient can satisfy both the ER and HER2 predicates.
func subtypeCohorts() []struct {
	Name   string
	Filter app.ClinicalFilter
} {
	return []struct {
		Name   string
		Filter app.ClinicalFilter
	}{
		{"erpos", app.ERPositiveAggregator()},
		{"her2pos", app.HER2PositiveAggregator()},
		{"tnbc", app.TripleNegativeAggregator()},
	}
}

func main() {
	var (
		// required parameters
		bundlePath string //The directory with the input bundle (expression, clinical, subtypes, signatures, drugs).
		outputPath string //The path where output files are written.
		// optional flags
		method      string
		folds       int
		smallFolds  int
		smallCohort int
		minExpr     float64
		trees       int
		name        string
		plotResults bool
		nrOfThreads int
	)
	var flags flag.FlagSet
	// options for the drep command
	flags.StringVar(&method, "method", "rsf", "The survival model to fit per fold: cox for Cox "+
		"proportional hazards, rsf for a random survival forest.")
	flags.IntVar(&folds, "folds", 10, "The number of cross-validation folds.")
	flags.IntVar(&smallFolds, "smallFolds", 0, "If > 0, cohorts smaller than --smallCohort use this "+
		"fold count instead of --folds. 0 keeps a uniform fold count for all cohorts.")
	flags.IntVar(&smallCohort, "smallCohort", 150, "The cohort size below which --smallFolds applies.")
	flags.Float64Var(&minExpr, "minExpr", 5.0, "The mean expression threshold below which genes are "+
		"filtered out before analysis.")
	flags.IntVar(&trees, "trees", 500, "The ensemble size for the random survival forest.")
	flags.StringVar(&name, "name", "exp1", "The name of the run. This is used to generate the "+
		"names of the output files.")
	flags.BoolVar(&plotResults, "plot", false, "Plot the ranked test concordance per subtype.")
	flags.IntVar(&nrOfThreads, "nrOfThreads", 0, "The number of threads drep uses.")
	// parse optional arguments
	parseFlags(flags, 3, drepHelp)
	// parse required arguments
	bundlePath = getFileName(os.Args[1], drepHelp)
	outputPath, _ = filepath.Abs(getFileName(os.Args[2], drepHelp))
	outputPath = outputPath + string(filepath.Separator)
	fmt.Println("Output path: ", outputPath)
	// create output directory
	err := os.MkdirAll(filepath.Dir(outputPath), 0700)
	if err != nil {
		panic(err)
	}
	// build an output command line
	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " ", bundlePath, " ", outputPath)
	fmt.Fprint(&command, " --method ", method)
	fmt.Fprint(&command, " --folds ", folds)
	fmt.Fprint(&command, " --smallFolds ", smallFolds)
	fmt.Fprint(&command, " --smallCohort ", smallCohort)
	fmt.Fprint(&command, " --minExpr ", minExpr)
	fmt.Fprint(&command, " --trees ", trees)
	fmt.Fprint(&command, " --name ", name)
	if plotResults {
		fmt.Fprint(&command, " --plot")
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nrOfThreads ", nrOfThreads)
	}
	// start execution
	log.Println(programMessage())
	log.Println("Executing command:\n", command.String())
	//1. Load the input bundle
	bundle, err := app.LoadBundle(bundlePath)
	if err != nil {
		log.Fatal("Cannot load input bundle: ", err)
	}
	//2. Preprocess into a sample-major model matrix with survival outcome columns
	matrix, _ := app.BuildModelMatrix(bundle, minExpr)
	//3. Per subtype cohort, run the per-drug cross-validated trainer
	opts := &survival.TrainerOptions{
		Method:          getMethod(method, drepHelp),
		Folds:           folds,
		SmallFolds:      smallFolds,
		SmallCohortSize: smallCohort,
		Trees:           trees,
	}
	drugs := bundle.DrugIndices()
	for _, subtype := range subtypeCohorts() {
		cohort := app.SelectCohort(matrix, bundle.Subtypes, subtype.Filter)
		fmt.Println("Subtype ", subtype.Name, ": ", cohort.NofSamples(), " patients.")
		subtypeResult := &report.SubtypeResult{Subtype: subtype.Name, Method: opts.Method}
		skipped := 0
		for _, index := range drugs {
			result, err := survival.TrainDrug(cohort, index, bundle.Signatures[index], opts)
			if err != nil {
				// one pathological gene signature must not abort the subtype run
				log.Println("Skipping drug ", index, " (", bundle.DrugIDs[index], ") for subtype ",
					subtype.Name, ": ", err)
				skipped++
				continue
			}
			result.Drug = bundle.DrugIDs[index]
			subtypeResult.Results = append(subtypeResult.Results, result)
		}
		fmt.Println("Subtype ", subtype.Name, ": ", len(subtypeResult.Results), " drugs fitted, ",
			skipped, " skipped.")
		//4. Write the per-drug performance table for this subtype
		report.WriteResultTable(subtypeResult, name, outputPath)
		if plotResults {
			if err := report.PlotConcordanceRanking(subtypeResult, name, outputPath); err != nil {
				log.Println("Cannot plot subtype ", subtype.Name, ": ", err)
			}
		}
	}
}
