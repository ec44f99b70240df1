package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(label, text string) Answer {
	return Answer{Question: "q-" + label, Label: label, Text: &text, Status: StatusOK}
}

func TestMatchNonBreakingSpaceExample(t *testing.T) {
	raw := "Patient:\n  José\u00a0 Díaz"
	blocks := []Block{NewBlock("/div[1]", raw)}

	spans, diags := Match(blocks, []Answer{ok("name", "José  Díaz")})

	require.Empty(t, diags)
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "/div[1]", s.NodeID)
	assert.Equal(t, "name", s.Label)
	assert.Equal(t, 11, s.Start)
	assert.Equal(t, 21, s.End)
	assert.Equal(t, "José\u00a0 Díaz", string([]rune(raw)[s.Start:s.End]))
	assert.Equal(t, s.Text, string([]rune(raw)[s.Start:s.End]))
}

func TestMatchPrefersSmallestBlock(t *testing.T) {
	blocks := []Block{
		NewBlock("/div[1]", "Invoice 42 issued to ACME Corp on Monday"),
		NewBlock("/div[1]/span[2]", "ACME Corp"),
		NewBlock("/div[1]/span[1]", "Invoice 42"),
	}

	spans, diags := Match(blocks, []Answer{ok("customer", "ACME Corp")})

	require.Empty(t, diags)
	require.Len(t, spans, 1)
	assert.Equal(t, "/div[1]/span[2]", spans[0].NodeID)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 9, spans[0].End)
}

func TestMatchFirstOccurrenceWins(t *testing.T) {
	blocks := []Block{NewBlock("/p[1]", "yes or yes")}

	spans, _ := Match(blocks, []Answer{ok("flag", "yes")})

	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 3, spans[0].End)
}

func TestMatchTieKeepsInputOrder(t *testing.T) {
	blocks := []Block{
		NewBlock("/p[2]", "total 10"),
		NewBlock("/p[1]", "total 10"),
	}

	spans, _ := Match(blocks, []Answer{ok("total", "10")})

	require.Len(t, spans, 1)
	assert.Equal(t, "/p[2]", spans[0].NodeID)
}

func TestMatchSkipsAnswersWithoutText(t *testing.T) {
	blocks := []Block{NewBlock("/p[1]", "hello world")}
	empty := ""
	blank := "  \n"
	answers := []Answer{
		{Label: "absent", Status: StatusOK},
		{Label: "empty", Text: &empty, Status: StatusOK},
		{Label: "blank", Text: &blank, Status: StatusOK},
	}

	spans, diags := Match(blocks, answers)

	assert.Empty(t, spans)
	assert.Empty(t, diags)
}

func TestMatchExcludesNonOKAnswers(t *testing.T) {
	blocks := []Block{NewBlock("/p[1]", "hello world")}
	text := "hello"
	answers := []Answer{
		{Label: "slow", Text: &text, Status: StatusTimeout},
		{Label: "broken", Text: &text, Status: StatusError},
		{Label: "missing", Text: &text, Status: StatusUnavailable},
	}

	spans, diags := Match(blocks, answers)

	assert.Empty(t, spans)
	assert.Empty(t, diags)
}

func TestMatchNotFound(t *testing.T) {
	blocks := []Block{NewBlock("/p[1]", "hello world")}

	spans, diags := Match(blocks, []Answer{ok("x", "goodbye")})

	assert.Empty(t, spans)
	assert.Equal(t, []Diagnostic{{Label: "x", Reason: ReasonNotFound}}, diags)
}

func TestMatchShortIndexMapContinuesScan(t *testing.T) {
	broken := Block{NodeID: "/b", Raw: "abc", Normalized: "abc", IndexMap: []int{0}}
	good := NewBlock("/good", "xx abc yy")

	spans, diags := Match([]Block{good, broken}, []Answer{ok("l", "abc")})

	assert.Equal(t, []Diagnostic{{Label: "l", NodeID: "/b", Reason: ReasonIndexMapShort}}, diags)
	require.Len(t, spans, 1)
	assert.Equal(t, "/good", spans[0].NodeID)
	assert.Equal(t, 3, spans[0].Start)
	assert.Equal(t, 6, spans[0].End)
}

func TestMatchDegenerateOffsetsContinueScan(t *testing.T) {
	broken := Block{NodeID: "/b", Raw: "abc", Normalized: "abc", IndexMap: []int{2, 1, 0}}

	spans, diags := Match([]Block{broken}, []Answer{ok("l", "abc")})

	assert.Empty(t, spans)
	assert.Equal(t, []Diagnostic{
		{Label: "l", NodeID: "/b", Reason: ReasonOffsetMapping},
		{Label: "l", Reason: ReasonNotFound},
	}, diags)
}

func TestMatchSkipsBlocksWithoutNodeOrText(t *testing.T) {
	blocks := []Block{
		NewBlock("", "abc"),
		NewBlock("/empty", "\n\r"),
	}

	_, diags := Match(blocks, []Answer{ok("l", "abc")})

	assert.Equal(t, []Diagnostic{{Label: "l", Reason: ReasonNotFound}}, diags)
}

func TestResolveIsTaggedAndOrdered(t *testing.T) {
	blocks := []Block{NewBlock("/p[1]", "alpha beta")}

	results := Resolve(blocks, []Answer{ok("a", "beta"), ok("b", "gamma")})

	require.Len(t, results, 2)
	span, isSpan := results[0].(Span)
	require.True(t, isSpan)
	assert.Equal(t, "a", span.ResultLabel())
	diag, isDiag := results[1].(Diagnostic)
	require.True(t, isDiag)
	assert.Equal(t, ReasonNotFound, diag.Reason)
}

func TestMatchIsDeterministic(t *testing.T) {
	blocks := []Block{
		NewBlock("/a", "Name: Jane Roe"),
		NewBlock("/b", "Jane Roe"),
		NewBlock("/c", "Date 2024-01-02, Jane Roe signed"),
		NewBlock("/d", "Roe"),
	}
	answers := []Answer{ok("name", "Jane Roe"), ok("last", "Roe"), ok("date", "2024-01-02"), ok("none", "zzz")}

	wantSpans, wantDiags := Match(blocks, answers)
	for i := 0; i < 20; i++ {
		spans, diags := Match(blocks, answers)
		assert.Equal(t, wantSpans, spans)
		assert.Equal(t, wantDiags, diags)
	}
}
