package render

import (
	"context"
	"strings"

	"prelabel/internal/core/match"
)

// Node is one element of the rendered document: its xpath relative to
// <body> and its full text content.
type Node struct {
	NodeID string `json:"node_id"`
	Text   string `json:"text"`
}

// Renderer turns task markup into per-element text nodes, in document order.
type Renderer interface {
	Render(ctx context.Context, markup string) ([]Node, error)
}

const bodyXPath = "/html/body"

// labelStudioPath makes an absolute xpath relative to <body>, which is how
// Label Studio addresses nodes of an HyperText task.
func labelStudioPath(xpath string) string {
	return strings.TrimPrefix(xpath, bodyXPath)
}

// Blocks normalizes rendered nodes into match blocks. Nodes whose text is
// empty after normalization are dropped.
func Blocks(nodes []Node) []match.Block {
	blocks := make([]match.Block, 0, len(nodes))
	for _, n := range nodes {
		b := match.NewBlock(n.NodeID, n.Text)
		if b.Normalized == "" || b.NodeID == "" {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}
