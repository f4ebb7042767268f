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

import "strings"

// ClinicalFilter is a predicate over a patient's subtype annotation, used to select subtype cohorts.
type ClinicalFilter func(*SubtypeAnnotation) bool

// subtypeAggregator wraps a predicate on the subtype annotation. IHC call strings are compared case-insensitively
// since upstream annotation exports are not consistent about casing.
func subtypeAggregator(predicate func(annotation *SubtypeAnnotation) bool) ClinicalFilter {
	return func(annotation *SubtypeAnnotation) bool {
		return predicate(annotation)
	}
}

// ERPositiveAggregator collects patients whose estrogen receptor IHC status is positive.
func ERPositiveAggregator() ClinicalFilter {
	return subtypeAggregator(func(annotation *SubtypeAnnotation) bool {
		return strings.EqualFold(annotation.ERIHC, "Positive")
	})
}

// HER2PositiveAggregator collects patients whose HER2 IHC status is positive or equivocal. Equivocal calls are
// included because they are routinely retested and treated as candidate HER2+ in this analysis.
func HER2PositiveAggregator() ClinicalFilter {
	return subtypeAggregator(func(annotation *SubtypeAnnotation) bool {
		return strings.EqualFold(annotation.HER2IHC, "Positive") || strings.EqualFold(annotation.HER2IHC, "Equivocal")
	})
}

// TripleNegativeAggregator collects patients with the explicit triple-negative flag set.
func TripleNegativeAggregator() ClinicalFilter {
	return subtypeAggregator(func(annotation *SubtypeAnnotation) bool {
		return strings.EqualFold(annotation.TripleNegative, "Yes")
	})
}
