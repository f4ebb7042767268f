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
	"sort"

	"drep/utils"

	"github.com/exascience/pargo/parallel"
	"github.com/valyala/fastrand"
)

// SurvivalForest is a random survival forest: an ensemble of survival trees grown on bootstrap samples, splitting
// nodes on the log-rank statistic. A tree leaf stores the Nelson-Aalen cumulative hazard of its samples (ensemble
// mortality); the forest risk score for a sample is the mortality averaged over all trees.
type SurvivalForest struct {
	Trees          int    //ensemble size
	MinLeaf        int    //minimum samples per leaf
	MinSplit       int    //minimum samples to attempt a split
	NofSplitPoints int    //nr of random split points tried per candidate feature
	Seed           uint32 //tree t uses generator seed Seed+t, so growth is deterministic and parallelizable
	trees          []*survivalTree
}

type survivalTree struct {
	root  *rsfNode
	inbag []bool //marks samples drawn into this tree's bootstrap
}

type rsfNode struct {
	leaf      bool
	feature   int
	threshold float64 //x[feature] <= threshold goes left
	left      *rsfNode
	right     *rsfNode
	mortality float64 //leaf only
}

// GrowSurvivalForest grows a forest on a sample-major predictor matrix with survival outcomes. Trees are grown in
// parallel; per-tree seeding keeps the result identical to a sequential run.
func GrowSurvivalForest(X [][]float64, days, status []float64, trees int, seed uint32) *SurvivalForest {
	f := &SurvivalForest{
		Trees:          trees,
		MinLeaf:        3,
		MinSplit:       6,
		NofSplitPoints: 10,
		Seed:           seed,
		trees:          make([]*survivalTree, trees),
	}
	n := len(X)
	parallel.Range(0, trees, 0, func(low, high int) {
		for t := low; t < high; t++ {
			rng := &fastrand.RNG{}
			rng.Seed(f.Seed + uint32(t))
			inbag := make([]bool, n)
			idx := make([]int, n)
			for i := 0; i < n; i++ {
				j := int(rng.Uint32n(uint32(n)))
				idx[i] = j
				inbag[j] = true
			}
			root := f.growNode(X, days, status, idx, rng)
			f.trees[t] = &survivalTree{root: root, inbag: inbag}
		}
	})
	return f
}

// growNode recursively grows a survival tree node from the samples in idx.
func (f *SurvivalForest) growNode(X [][]float64, days, status []float64, idx []int, rng *fastrand.RNG) *rsfNode {
	if len(idx) < f.MinSplit || countEvents(status, idx) == 0 {
		return &rsfNode{leaf: true, mortality: nelsonAalen(days, status, idx)}
	}
	p := len(X[0])
	mtry := utils.MinInt(int(math.Ceil(math.Sqrt(float64(p)))), p)
	features := sampleFeatures(p, mtry, rng)
	bestStat := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	var bestLeft, bestRight []int
	for _, feat := range features {
		for s := 0; s < f.NofSplitPoints; s++ {
			pivot := idx[int(rng.Uint32n(uint32(len(idx))))]
			thr := X[pivot][feat]
			left := []int{}
			right := []int{}
			for _, i := range idx {
				if X[i][feat] <= thr {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) < f.MinLeaf || len(right) < f.MinLeaf {
				continue
			}
			stat := logRank(days, status, left, right)
			if stat > bestStat {
				bestStat = stat
				bestFeature = feat
				bestThreshold = thr
				bestLeft = left
				bestRight = right
			}
		}
	}
	if bestFeature == -1 {
		return &rsfNode{leaf: true, mortality: nelsonAalen(days, status, idx)}
	}
	return &rsfNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      f.growNode(X, days, status, bestLeft, rng),
		right:     f.growNode(X, days, status, bestRight, rng),
	}
}

// sampleFeatures draws mtry distinct feature indices, mtry <= p.
func sampleFeatures(p, mtry int, rng *fastrand.RNG) []int {
	features := make([]int, p)
	for i := 0; i < p; i++ {
		features[i] = i
	}
	for i := 0; i < mtry; i++ {
		j := i + int(rng.Uint32n(uint32(p-i)))
		features[i], features[j] = features[j], features[i]
	}
	return features[:mtry]
}

// Predict returns the ensemble mortality for one sample: the leaf mortality averaged over all trees. Higher
// mortality means higher predicted risk.
func (f *SurvivalForest) Predict(x []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += predictTree(t.root, x)
	}
	return sum / float64(len(f.trees))
}

func predictTree(node *rsfNode, x []float64) float64 {
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.mortality
}

// OOBConcordance computes the concordance of out-of-bag risk predictions against observed survival. For each sample
// it averages mortality over the trees whose bootstrap excluded it; samples that are in-bag everywhere are left out
// of the estimate. The forest's out-of-bag error rate is 1 minus this value.
func (f *SurvivalForest) OOBConcordance(X [][]float64, days, status []float64) (float64, error) {
	n := len(X)
	scores := make([]float64, 0, n)
	oobDays := make([]float64, 0, n)
	oobStatus := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		ctr := 0
		for _, t := range f.trees {
			if !t.inbag[i] {
				sum += predictTree(t.root, X[i])
				ctr++
			}
		}
		if ctr == 0 {
			continue
		}
		scores = append(scores, sum/float64(ctr))
		oobDays = append(oobDays, days[i])
		oobStatus = append(oobStatus, status[i])
	}
	if len(scores) < 2 {
		return 0, fmt.Errorf("too few out-of-bag samples (%d) for an error estimate", len(scores))
	}
	return Concordance(oobDays, oobStatus, scores), nil
}

// fitForestFold grows a forest on the training partition and evaluates concordance on the held-out partition. The
// train concordance is taken as 1 minus the out-of-bag error rate, the forest's substitute for a direct train
// concordance computation.
func fitForestFold(m *ModelMatrix, cols []int, trainIdx, testIdx []int, trees int, rng *fastrand.RNG) (trainC, testC float64, err error) {
	if len(cols) == 0 {
		return 0, 0, ErrNoMatchedGenes
	}
	trainDays, trainStatus := gatherOutcome(m, trainIdx)
	if countEventsAll(trainStatus) == 0 {
		return 0, 0, fmt.Errorf("no death events in training partition")
	}
	Xtrain := gatherRows(m, cols, trainIdx)
	forest := GrowSurvivalForest(Xtrain, trainDays, trainStatus, trees, rng.Uint32())
	oobC, err := forest.OOBConcordance(Xtrain, trainDays, trainStatus)
	if err != nil {
		return 0, 0, err
	}
	oobErr := 1.0 - oobC
	trainC = 1.0 - oobErr
	Xtest := gatherRows(m, cols, testIdx)
	testDays, testStatus := gatherOutcome(m, testIdx)
	scores := make([]float64, len(Xtest))
	for i, x := range Xtest {
		scores[i] = forest.Predict(x)
	}
	testC = Concordance(testDays, testStatus, scores)
	return trainC, testC, nil
}

// gatherRows copies the selected columns of a set of matrix rows into a dense predictor matrix.
func gatherRows(m *ModelMatrix, cols []int, idx []int) [][]float64 {
	X := make([][]float64, len(idx))
	for i, r := range idx {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = m.Data[r][c]
		}
		X[i] = row
	}
	return X
}

func countEvents(status []float64, idx []int) int {
	ctr := 0
	for _, i := range idx {
		if status[i] > 0 {
			ctr++
		}
	}
	return ctr
}

func countEventsAll(status []float64) int {
	ctr := 0
	for _, s := range status {
		if s > 0 {
			ctr++
		}
	}
	return ctr
}

// nelsonAalen computes the Nelson-Aalen cumulative hazard over the samples in idx, evaluated at the last observed
// time. Duplicate sample indices from bootstrap resampling each count as a separate observation.
func nelsonAalen(days, status []float64, idx []int) float64 {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.Slice(sorted, func(a, b int) bool { return days[sorted[a]] < days[sorted[b]] })
	hazard := 0.0
	atRisk := len(sorted)
	i := 0
	for i < len(sorted) {
		t := days[sorted[i]]
		deaths := 0
		ties := 0
		for i < len(sorted) && days[sorted[i]] == t {
			if status[sorted[i]] > 0 {
				deaths++
			}
			ties++
			i++
		}
		if deaths > 0 {
			hazard += float64(deaths) / float64(atRisk)
		}
		atRisk -= ties
	}
	return hazard
}

// logRank computes the log-rank test statistic between two candidate child groups. Larger values mean better
// separation of the survival distributions.
func logRank(days, status []float64, left, right []int) float64 {
	type obs struct {
		t     float64
		event bool
		left  bool
	}
	all := make([]obs, 0, len(left)+len(right))
	for _, i := range left {
		all = append(all, obs{days[i], status[i] > 0, true})
	}
	for _, i := range right {
		all = append(all, obs{days[i], status[i] > 0, false})
	}
	sort.Slice(all, func(a, b int) bool { return all[a].t < all[b].t })
	n1 := float64(len(left))
	n2 := float64(len(right))
	num := 0.0
	den := 0.0
	i := 0
	for i < len(all) {
		t := all[i].t
		d := 0.0  //total deaths at t
		d1 := 0.0 //deaths at t in the left group
		ties1 := 0.0
		ties2 := 0.0
		for i < len(all) && all[i].t == t {
			if all[i].event {
				d++
				if all[i].left {
					d1++
				}
			}
			if all[i].left {
				ties1++
			} else {
				ties2++
			}
			i++
		}
		n := n1 + n2
		if d > 0 && n > 1 {
			num += d1 - d*n1/n
			den += d * (n1 / n) * (n2 / n) * (n - d) / (n - 1)
		}
		n1 -= ties1
		n2 -= ties2
	}
	if den <= 0 {
		return 0
	}
	return num * num / den
}
