package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/ir"
	"github.com/roach88/tagbridge/internal/normalize"
)

// AddFacts normalizes facts for relation and submits them to the backend.
//
// disjunctions lists mutual-exclusion groups as indices into facts. Each
// group receives one fresh id from the session counter. Disjunctions are
// ignored, with a warning, when the provenance does not support them.
// When the backend rejects the batch the ids it drew stay consumed.
func (s *Session) AddFacts(ctx context.Context, relation string, facts []ir.RawFact, disjunctions [][]int) error {
	sh, err := s.shape(relation)
	if err != nil {
		return err
	}
	if len(disjunctions) > 0 && !s.SupportsDisjunctions() {
		s.logger.Warn("disjunctions ignored",
			zap.String("relation", sh.Name),
			zap.Int("groups", len(disjunctions)),
		)
	}

	from := s.counter.Peek()
	elems, err := normalize.Normalize(sh, facts, disjunctions, s.mode(), s.counter)
	if err == nil {
		err = s.backend.SubmitFacts(ctx, sh.Name, elems)
	}
	if err != nil {
		err = fmt.Errorf("add facts to %s: %w", sh.Name, err)
		if rerr := s.recordReserved(ctx, from); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	kwargs := map[string]ir.Value{}
	if disjunctions != nil {
		kwargs["disjunctions"] = ir.EncodeGroups(disjunctions)
	}
	if err := s.record(ctx, ir.MethodAddFacts, []ir.Value{ir.String(sh.Name), ir.EncodeRawFacts(facts)}, kwargs); err != nil {
		return err
	}

	s.logger.Debug("facts added",
		zap.String("relation", sh.Name),
		zap.Int("count", len(elems)),
		zap.Int64("next_group_id", s.counter.Peek()),
	)
	return nil
}

// MapInput turns one score per candidate tuple of name's input mapping
// into tagged facts and adds them.
//
// Scores below the mapping's retain threshold are dropped, then only the
// retain-k best remain (the mapping's RetainK, else the relation's
// retain-topk). A disjunctive mapping puts every kept fact in one group.
func (s *Session) MapInput(ctx context.Context, name string, scores []float64) error {
	sh, err := s.shape(name)
	if err != nil {
		return err
	}
	m := sh.InputMapping
	if m == nil {
		return ir.NewConfigurationError(fmt.Sprintf("relation %s has no input mapping", sh.Name))
	}
	if len(scores) != len(m.Tuples) {
		return ir.NewTupleShapeError(sh.Name, len(scores),
			fmt.Sprintf("input mapping has %d tuples, got %d scores", len(m.Tuples), len(scores)))
	}

	k := m.RetainK
	if k == 0 {
		k = sh.RetainTopK
	}
	kept := retain(scores, m.RetainThreshold, k)

	facts := make([]ir.RawFact, len(kept))
	for i, idx := range kept {
		facts[i] = ir.RawFact{Tagged: true, Tag: ir.Float(scores[idx]), Value: m.Tuples[idx].Clone()}
	}

	var groups [][]int
	if m.Disjunctive && s.SupportsDisjunctions() && len(facts) > 0 {
		all := make([]int, len(facts))
		for i := range all {
			all[i] = i
		}
		groups = [][]int{all}
	}
	return s.AddFacts(ctx, sh.Name, facts, groups)
}

// retain returns the indices of scores to keep, in their original order.
func retain(scores []float64, threshold float64, k int) []int {
	idx := make([]int, 0, len(scores))
	for i, sc := range scores {
		if threshold > 0 && sc < threshold {
			continue
		}
		idx = append(idx, i)
	}
	if k > 0 && len(idx) > k {
		slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(scores[b], scores[a]) })
		idx = idx[:k]
		slices.Sort(idx)
	}
	return idx
}
