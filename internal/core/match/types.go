package match

import (
	"prelabel/internal/core/textnorm"
)

// Block is one candidate text region of a rendered document.
type Block struct {
	NodeID     string `json:"node_id"`
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	// IndexMap has one entry per rune of Normalized; each entry is the rune
	// index in Raw that produced it.
	IndexMap []int `json:"index_map"`
}

// NewBlock builds a Block from a node's raw text.
func NewBlock(nodeID, raw string) Block {
	normalized, indexMap := textnorm.CharPreserving(raw)
	return Block{NodeID: nodeID, Raw: raw, Normalized: normalized, IndexMap: indexMap}
}

// AnswerStatus reports how an LLM call ended.
type AnswerStatus string

const (
	StatusOK          AnswerStatus = "ok"
	StatusTimeout     AnswerStatus = "timeout"
	StatusError       AnswerStatus = "error"
	StatusUnavailable AnswerStatus = "unavailable"
)

// Answer is the model's reply to one (question, label) pair.
type Answer struct {
	Question string       `json:"question"`
	Label    string       `json:"label"`
	Text     *string      `json:"answer"`
	Status   AnswerStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// Matchable reports whether the answer takes part in span matching.
func (a Answer) Matchable() bool {
	return a.Status == StatusOK && a.Text != nil && *a.Text != ""
}

// Reason codes carried by a Diagnostic.
const (
	ReasonIndexMapShort = "index map missing or short"
	ReasonOffsetMapping = "offset mapping failed"
	ReasonNotFound      = "not found in any block"
)

// Result is either a Span or a Diagnostic.
type Result interface {
	ResultLabel() string
	isResult()
}

// Span is a half-open [Start, End) rune range in a node's original text.
type Span struct {
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

// Diagnostic explains why an answer could not be placed on a span.
type Diagnostic struct {
	Label  string `json:"label"`
	NodeID string `json:"node_id,omitempty"`
	Reason string `json:"reason"`
}

func (s Span) ResultLabel() string       { return s.Label }
func (d Diagnostic) ResultLabel() string { return d.Label }
func (Span) isResult()                   {}
func (Diagnostic) isResult()             {}
