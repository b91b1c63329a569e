package feed

import (
	"sort"

	"manifold/internal/otelspan"
)

// qualityScore implements the quality scoring rule used to pick a winner
// among occurrences sharing one identity: +100 non-history, +10 has
// finish_reason, +5 enrichment (thinking), +4 output source, +3 tool
// span, +2 event source (vs attribute), +1 has model info.
func qualityScore(o occurrence) int {
	score := 0
	if !o.isHistory {
		score += 100
	}
	if o.msg.FinishReason != nil {
		score += 10
	}
	if hasThinking(o.msg.Content) {
		score += 5
	}
	if o.msg.Source == otelspan.SourceOutputAttr {
		score += 4
	}
	if o.msg.Observation == otelspan.ObservationTool {
		score += 3
	}
	if o.msg.Source == otelspan.SourceEventAttr {
		score += 2
	}
	if o.msg.Model != "" {
		score += 1
	}
	return score
}

// identityGroup collects every occurrence sharing one identity, for
// computing that identity's birth_time and its dedup winner.
type identityGroup struct {
	id        string
	birthTime int64
	occs      []occurrence
}

func groupByIdentity(occs []occurrence) []*identityGroup {
	index := make(map[string]*identityGroup)
	var order []*identityGroup
	for _, o := range occs {
		g, ok := index[o.id]
		if !ok {
			g = &identityGroup{id: o.id, birthTime: o.msg.BirthTime}
			index[o.id] = g
			order = append(order, g)
		}
		if o.msg.BirthTime < g.birthTime {
			g.birthTime = o.msg.BirthTime
		}
		g.occs = append(g.occs, o)
	}
	return order
}

// winner picks the surviving occurrence for a group: highest quality
// score, ties broken by earliest birth_time then smallest
// (message_index, entry_index).
func (g *identityGroup) winner() occurrence {
	best := g.occs[0]
	bestScore := qualityScore(best)
	for _, o := range g.occs[1:] {
		s := qualityScore(o)
		switch {
		case s > bestScore:
			best, bestScore = o, s
		case s == bestScore:
			if earlierOccurrence(o, best) {
				best = o
			}
		}
	}
	best.msg.BirthTime = g.birthTime
	return best
}

func earlierOccurrence(a, b occurrence) bool {
	if a.msg.BirthTime != b.msg.BirthTime {
		return a.msg.BirthTime < b.msg.BirthTime
	}
	if a.msg.MessageIndex != b.msg.MessageIndex {
		return a.msg.MessageIndex < b.msg.MessageIndex
	}
	return a.msg.EntryIndex < b.msg.EntryIndex
}

// dedupAndOrder runs phase 7 (dedup by identity) and the final ordering
// rule, returning only the surviving, non-history occurrences.
func dedupAndOrder(occs []occurrence) []otelspan.RawMessage {
	groups := groupByIdentity(occs)

	winners := make([]occurrence, 0, len(groups))
	for _, g := range groups {
		winners = append(winners, g.winner())
	}

	surviving := make([]otelspan.RawMessage, 0, len(winners))
	for _, w := range winners {
		if !w.isHistory {
			surviving = append(surviving, w.msg)
		}
	}

	sort.SliceStable(surviving, func(i, j int) bool {
		a, b := surviving[i], surviving[j]
		if a.BirthTime != b.BirthTime {
			return a.BirthTime < b.BirthTime
		}
		if a.MessageIndex != b.MessageIndex {
			return a.MessageIndex < b.MessageIndex
		}
		return a.EntryIndex < b.EntryIndex
	})

	return surviving
}
