package converter

import (
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// HIERARCHY GROUPING
// =============================================================================
//
// Rows are partitioned three ways:
//
//   Group     (one per geographic code, one output document each)
//     Activity  (one per composite key, hierarchy 1)
//       Award     (one per award identifier, hierarchy 3)
//
// Every level keeps first-occurrence order. The first row seen for an
// activity or award supplies its metadata.
//
// =============================================================================

// Group is one output document's worth of rows.
type Group struct {
	Key        string
	Rows       []int
	Activities []*ActivityPlan
}

// ActivityPlan is a hierarchy-1 activity and its awards.
type ActivityPlan struct {
	Keys   Keys
	Row    types.Row
	Awards []*AwardPlan
}

// AwardPlan is a hierarchy-3 award.
type AwardPlan struct {
	Keys Keys
	Row  types.Row
}

// orderedSet assigns each distinct key a stable position in insertion order.
type orderedSet[T any] struct {
	items []T
	pos   map[string]int
}

func newOrderedSet[T any]() *orderedSet[T] {
	return &orderedSet[T]{pos: make(map[string]int)}
}

// add stores item under key unless the key is already present.
// It returns the stored item and whether it was newly added.
func (s *orderedSet[T]) add(key string, item T) (T, bool) {
	if i, ok := s.pos[key]; ok {
		return s.items[i], false
	}
	s.pos[key] = len(s.items)
	s.items = append(s.items, item)
	return item, true
}

// GroupRows partitions the primary table. keys must hold one entry per row.
func GroupRows(t *types.Table, keys []Keys) []*Group {
	groups := newOrderedSet[*Group]()
	activities := make(map[string]*orderedSet[*ActivityPlan])
	awards := make(map[string]*orderedSet[*AwardPlan])

	for _, row := range t.Rows {
		k := keys[row.Index]

		g, _ := groups.add(k.Group(), &Group{Key: k.Group()})
		g.Rows = append(g.Rows, row.Index)

		acts, ok := activities[g.Key]
		if !ok {
			acts = newOrderedSet[*ActivityPlan]()
			activities[g.Key] = acts
		}
		act, _ := acts.add(k.Composite, &ActivityPlan{Keys: k, Row: row})

		aw, ok := awards[k.Composite]
		if !ok {
			aw = newOrderedSet[*AwardPlan]()
			awards[k.Composite] = aw
		}
		if award, added := aw.add(k.Award, &AwardPlan{Keys: k, Row: row}); added {
			act.Awards = append(act.Awards, award)
		}
	}

	for _, g := range groups.items {
		g.Activities = activities[g.Key].items
	}
	return groups.items
}
