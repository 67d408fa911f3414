package config

import (
	"slices"
	"strings"
)

// Provenance names the tag semiring a session runs under.
type Provenance string

const (
	ProvenanceUnit                  Provenance = "unit"
	ProvenanceProofs                Provenance = "proofs"
	ProvenanceProbProofs            Provenance = "probproofs"
	ProvenanceMinMaxProb            Provenance = "minmaxprob"
	ProvenanceAddMultProb           Provenance = "addmultprob"
	ProvenanceTopKProofs            Provenance = "topkproofs"
	ProvenanceTopBottomKClauses     Provenance = "topbottomkclauses"
	ProvenanceSampleKProofs         Provenance = "samplekproofs"
	ProvenanceDiffMinMaxProb        Provenance = "diffminmaxprob"
	ProvenanceDiffAddMultProb       Provenance = "diffaddmultprob"
	ProvenanceDiffNandMultProb      Provenance = "diffnandmultprob"
	ProvenanceDiffMaxMultProb       Provenance = "diffmaxmultprob"
	ProvenanceDiffNandMinProb       Provenance = "diffnandminprob"
	ProvenanceDiffSampleKProofs     Provenance = "diffsamplekproofs"
	ProvenanceDiffTopKProofs        Provenance = "difftopkproofs"
	ProvenanceDiffTopBottomKClauses Provenance = "difftopbottomkclauses"
	ProvenanceDiffTopKProofsDebug   Provenance = "difftopkproofsdebug"
	ProvenanceCustom                Provenance = "custom"
)

var known = []Provenance{
	ProvenanceUnit, ProvenanceProofs, ProvenanceProbProofs, ProvenanceMinMaxProb,
	ProvenanceAddMultProb, ProvenanceTopKProofs, ProvenanceTopBottomKClauses,
	ProvenanceSampleKProofs, ProvenanceDiffMinMaxProb, ProvenanceDiffAddMultProb,
	ProvenanceDiffNandMultProb, ProvenanceDiffMaxMultProb, ProvenanceDiffNandMinProb,
	ProvenanceDiffSampleKProofs, ProvenanceDiffTopKProofs, ProvenanceDiffTopBottomKClauses,
	ProvenanceDiffTopKProofsDebug, ProvenanceCustom,
}

// Host-implemented semirings run under the custom provenance.
var customAliases = map[Provenance]bool{
	"diffaddmultprob2":  true,
	"diffnandmultprob2": true,
	"diffmaxmultprob2":  true,
}

// The three capability lists below are maintained independently. Their
// membership overlaps in ways that cannot be derived from one another.
var (
	tagFree = map[Provenance]bool{
		ProvenanceUnit:   true,
		ProvenanceProofs: true,
	}

	probabilistic = map[Provenance]bool{
		ProvenanceProbProofs:        true,
		ProvenanceTopKProofs:        true,
		ProvenanceSampleKProofs:     true,
		ProvenanceTopBottomKClauses: true,
		ProvenanceMinMaxProb:        true,
		ProvenanceAddMultProb:       true,
	}

	disjunctive = map[Provenance]bool{
		ProvenanceProofs:                true,
		ProvenanceTopKProofs:            true,
		ProvenanceTopBottomKClauses:     true,
		ProvenanceDiffSampleKProofs:     true,
		ProvenanceDiffTopKProofs:        true,
		ProvenanceDiffTopBottomKClauses: true,
		ProvenanceDiffTopKProofsDebug:   true,
	}
)

// KnownProvenances returns every accepted provenance name.
func KnownProvenances() []Provenance { return slices.Clone(known) }

// Canonical folds aliases onto the provenance they run as.
func (p Provenance) Canonical() Provenance {
	if customAliases[p] {
		return ProvenanceCustom
	}
	return p
}

// Known reports whether p (after alias folding) is accepted.
func (p Provenance) Known() bool {
	return slices.Contains(known, p.Canonical())
}

// RequiresTag is false only for the tag-free provenances.
func (p Provenance) RequiresTag() bool { return !tagFree[p.Canonical()] }

// IsProbabilistic reports whether tags are probabilities.
func (p Provenance) IsProbabilistic() bool { return probabilistic[p.Canonical()] }

// SupportsDisjunctions reports whether facts may carry mutual-exclusion
// group ids.
func (p Provenance) SupportsDisjunctions() bool { return disjunctive[p.Canonical()] }

// IsDifferentiable reports whether the provenance propagates gradients.
func (p Provenance) IsDifferentiable() bool {
	c := p.Canonical()
	return c == ProvenanceCustom || strings.HasPrefix(string(c), "diff")
}
