// Package match places free-form answers onto exact character spans of
// rendered document nodes.
//
// Candidate blocks are tried from the shortest normalized text to the
// longest and the first block containing the answer wins. This is a greedy
// and deterministic choice, not a globally optimal one: the smallest block
// holding the answer is taken to be the most precise location, and larger
// ancestors repeating the same text come later.
package match

import (
	"slices"
	"strings"
	"unicode/utf8"

	"prelabel/internal/core/textnorm"
	"prelabel/internal/logger"
)

var log = logger.New("Matcher")

// Match resolves answers against blocks and splits the outcome into spans
// and diagnostics, both in answer order.
func Match(blocks []Block, answers []Answer) ([]Span, []Diagnostic) {
	var (
		spans []Span
		diags []Diagnostic
	)
	for _, r := range Resolve(blocks, answers) {
		switch v := r.(type) {
		case Span:
			spans = append(spans, v)
		case Diagnostic:
			diags = append(diags, v)
		}
	}
	log.LogDebugf("match summary: %d spans, %d diagnostics", len(spans), len(diags))
	return spans, diags
}

// Resolve returns the ordered stream of results for answers. Every
// matchable answer yields zero or more diagnostics followed by at most one
// span, or ends with a ReasonNotFound diagnostic.
func Resolve(blocks []Block, answers []Answer) []Result {
	candidates := sortedCandidates(blocks)

	var out []Result
	for _, ans := range answers {
		if !ans.Matchable() {
			continue
		}
		needle := textnorm.Loose(*ans.Text)
		if needle == "" {
			continue
		}
		out = append(out, locate(candidates, ans.Label, needle)...)
	}
	return out
}

type candidate struct {
	Block
	runes int
}

func sortedCandidates(blocks []Block) []candidate {
	out := make([]candidate, 0, len(blocks))
	for _, b := range blocks {
		if b.NodeID == "" || b.Normalized == "" {
			continue
		}
		out = append(out, candidate{Block: b, runes: utf8.RuneCountInString(b.Normalized)})
	}
	slices.SortStableFunc(out, func(a, b candidate) int { return a.runes - b.runes })
	return out
}

func locate(candidates []candidate, label, needle string) []Result {
	var out []Result
	n := utf8.RuneCountInString(needle)

	for _, c := range candidates {
		byteOff := strings.Index(c.Normalized, needle)
		if byteOff < 0 {
			continue
		}
		o := utf8.RuneCountInString(c.Normalized[:byteOff])
		last := o + n - 1

		if len(c.IndexMap) == 0 || last >= len(c.IndexMap) {
			log.LogDebugf("index map short: label=%s node=%s offset=%d len=%d map=%d", label, c.NodeID, o, n, len(c.IndexMap))
			out = append(out, Diagnostic{Label: label, NodeID: c.NodeID, Reason: ReasonIndexMapShort})
			continue
		}

		start := c.IndexMap[o]
		end := c.IndexMap[last] + 1
		raw := []rune(c.Raw)
		if start < 0 || end <= start || end > len(raw) {
			log.LogDebugf("offset mapping failed: label=%s node=%s start=%d end=%d", label, c.NodeID, start, end)
			out = append(out, Diagnostic{Label: label, NodeID: c.NodeID, Reason: ReasonOffsetMapping})
			continue
		}

		return append(out, Span{
			NodeID: c.NodeID,
			Label:  label,
			Start:  start,
			End:    end,
			Text:   string(raw[start:end]),
		})
	}

	return append(out, Diagnostic{Label: label, Reason: ReasonNotFound})
}
