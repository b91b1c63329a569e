package feed

import "manifold/internal/otelspan"

// Timeline runs the full dedup/history/ordering pipeline over every raw
// message occurrence extracted from a trace's spans, returning a linear
// conversation free of context-duplicated messages, ordered by real
// occurrence (spec.md §4.4). Timeline is idempotent: Timeline(Timeline(x))
// equals Timeline(x), since a single surviving occurrence per identity
// that already carries its group's birth_time and a stable history flag
// re-derives the same flag and the same single-member group on a second pass.
func Timeline(messages []otelspan.RawMessage) []otelspan.RawMessage {
	occs := make([]occurrence, len(messages))
	for i, m := range messages {
		occs[i] = occurrence{msg: m, id: identity(m)}
	}

	applyHistoryPhases(occs)

	return dedupAndOrder(occs)
}
