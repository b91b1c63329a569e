package feed

import "manifold/internal/otelspan"

// occurrence is one raw message occurrence plus the mutable history flag
// the eight detection phases accumulate.
type occurrence struct {
	msg      otelspan.RawMessage
	id       string
	isHistory bool
}

// isAccumulatorObservation reports whether an observation type replays
// child messages as context (spec glossary: "Accumulator span").
func isAccumulatorObservation(o otelspan.ObservationType) bool {
	return o == otelspan.ObservationAgent || o == otelspan.ObservationChain
}

// buildCurrentToolUseIDs is phase 1: the set of tool_use ids considered
// "current" going into history detection — those from protected
// (IsOutput) occurrences, and those carried by any occurrence on an
// agent span.
func buildCurrentToolUseIDs(occs []occurrence) map[string]bool {
	ids := make(map[string]bool)
	for _, o := range occs {
		if o.msg.IsOutput || o.msg.Observation == otelspan.ObservationAgent {
			for _, id := range toolUseIDs(o.msg.Content) {
				ids[id] = true
			}
		}
	}
	return ids
}

// markTimestampHistory is phase 2: a message whose event_time precedes
// its owning span's start is replayed historical context. OUTPUT
// protection always wins over this rule (open question #3).
func markTimestampHistory(occs []occurrence) {
	for i := range occs {
		o := &occs[i]
		if o.msg.IsOutput {
			continue
		}
		if o.msg.BirthTime < o.msg.SpanStart {
			o.isHistory = true
		}
	}
}

// markAccumulatorInputHistory is phase 3: input messages replayed by a
// non-root accumulator span are history — the accumulator is showing
// context it received, not producing something new.
func markAccumulatorInputHistory(occs []occurrence) {
	for i := range occs {
		o := &occs[i]
		if o.msg.IsOutput {
			continue
		}
		if !o.msg.IsRootSpan && isAccumulatorObservation(o.msg.Observation) {
			o.isHistory = true
		}
	}
}

// markIntermediateAssistantText is phase 4: in a trace that has any
// agent span, assistant text from a generation span with no
// finish_reason is an intermediate step the agent is narrating over,
// not the final answer.
func markIntermediateAssistantText(occs []occurrence) {
	if !traceHasAgentSpan(occs) {
		return
	}
	for i := range occs {
		o := &occs[i]
		if o.msg.IsOutput {
			continue
		}
		if o.msg.Role != otelspan.RoleAssistant || o.msg.Observation != otelspan.ObservationGeneration {
			continue
		}
		if o.msg.FinishReason == nil && hasTextBlock(o.msg.Content) {
			o.isHistory = true
		}
	}
}

// markInputAttrAssistantText is phase 4b: assistant content sourced from
// an input attribute (i.e. it arrived as prior-turn context, not this
// span's own output) on a non-root generation span is history.
func markInputAttrAssistantText(occs []occurrence) {
	for i := range occs {
		o := &occs[i]
		if o.msg.IsOutput {
			continue
		}
		if o.msg.Role == otelspan.RoleAssistant &&
			o.msg.Source == otelspan.SourceInputAttr &&
			o.msg.Observation == otelspan.ObservationGeneration &&
			!o.msg.IsRootSpan {
			o.isHistory = true
		}
	}
}

// markMultiTurnReplaySpans is phase 5: a generation span that itself
// contains a tool_result is replaying a prior turn of a multi-turn tool
// conversation; everything in that span except the protected output is
// history.
func markMultiTurnReplaySpans(occs []occurrence) {
	spansWithToolResult := make(map[string]bool)
	for _, o := range occs {
		if o.msg.Observation != otelspan.ObservationGeneration {
			continue
		}
		if _, ok := toolResultFor(o.msg.Content); ok {
			spansWithToolResult[o.msg.SpanID] = true
		}
	}
	for i := range occs {
		o := &occs[i]
		if o.msg.IsOutput {
			continue
		}
		if o.msg.Observation == otelspan.ObservationGeneration && spansWithToolResult[o.msg.SpanID] {
			o.isHistory = true
		}
	}
}

// markOrphanToolResults is phase 6: a tool_result whose tool_use_id is
// not in the current-tool-use-id set has no matching call anywhere in
// the trace and is dropped from the timeline as an orphan.
func markOrphanToolResults(occs []occurrence, currentToolUseIDs map[string]bool) {
	for i := range occs {
		o := &occs[i]
		id, ok := toolResultFor(o.msg.Content)
		if !ok {
			continue
		}
		if !currentToolUseIDs[id] {
			o.isHistory = true
		}
	}
}

// enforceToolLinkage is the tool linkage invariant, not one of the eight
// numbered phases but a correctness requirement that must hold after
// them: if a ToolUse is current, its paired ToolResult must also be
// current, since a result without its call (or vice versa) would break
// the rendered tool-chain UI.
func enforceToolLinkage(occs []occurrence) {
	currentToolUse := make(map[string]bool)
	for _, o := range occs {
		if o.isHistory {
			continue
		}
		for _, id := range toolUseIDs(o.msg.Content) {
			currentToolUse[id] = true
		}
	}
	for i := range occs {
		o := &occs[i]
		id, ok := toolResultFor(o.msg.Content)
		if ok && currentToolUse[id] {
			o.isHistory = false
		}
	}
}

func traceHasAgentSpan(occs []occurrence) bool {
	for _, o := range occs {
		if o.msg.Observation == otelspan.ObservationAgent {
			return true
		}
	}
	return false
}

func hasTextBlock(blocks []otelspan.ContentBlock) bool {
	for _, b := range blocks {
		if b.Kind == otelspan.BlockText {
			return true
		}
	}
	return false
}

// applyHistoryPhases runs all eight detection phases in order, then
// enforces the tool linkage invariant.
func applyHistoryPhases(occs []occurrence) {
	currentToolUseIDs := buildCurrentToolUseIDs(occs) // phase 1
	markTimestampHistory(occs)                        // phase 2
	markAccumulatorInputHistory(occs)                 // phase 3
	markIntermediateAssistantText(occs)               // phase 4
	markInputAttrAssistantText(occs)                  // phase 4b
	markMultiTurnReplaySpans(occs)                    // phase 5
	markOrphanToolResults(occs, currentToolUseIDs)     // phase 6
	enforceToolLinkage(occs)
}
