package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<html><body>
<div>
  <p>Patient: Jane Roe</p>
  <p id="dob">DOB: 1970-01-01</p>
  <span>aside</span>
  <p>Plan: rest</p>
</div>
</body></html>`

func TestStaticRender(t *testing.T) {
	nodes, err := NewStatic().Render(context.Background(), sample)
	require.NoError(t, err)

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NodeID
	}
	assert.Equal(t, []string{
		"/div[1]",
		"/div[1]/p[1]",
		`//*[@id="dob"]`,
		"/div[1]/span[1]",
		"/div[1]/p[3]",
	}, ids)
	assert.Equal(t, "Patient: Jane Roe", nodes[1].Text)
	assert.Contains(t, nodes[0].Text, "Plan: rest")
}

func TestStaticRenderFragment(t *testing.T) {
	nodes, err := NewStatic().Render(context.Background(), "<b>bold</b> and <i>italic</i>")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, Node{NodeID: "/b[1]", Text: "bold"}, nodes[0])
	assert.Equal(t, Node{NodeID: "/i[1]", Text: "italic"}, nodes[1])
}

func TestStaticRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStatic().Render(ctx, sample)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlocks(t *testing.T) {
	blocks := Blocks([]Node{
		{NodeID: "/p[1]", Text: "Name:\u00a0Jane"},
		{NodeID: "/p[2]", Text: "\n\r"},
		{NodeID: "", Text: "orphan"},
	})
	require.Len(t, blocks, 1)
	assert.Equal(t, "Name: Jane", blocks[0].Normalized)
	assert.Equal(t, "Name:\u00a0Jane", blocks[0].Raw)
}
