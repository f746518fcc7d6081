// Package query implements hybrid retrieval: vector similarity search over
// chunks fused with a neighbourhood expansion of the entities those chunks
// mention.
package query

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

const (
	DefaultK            = 8
	DefaultHops         = 1
	DefaultGraphLimit   = 30
	DefaultContextLimit = 20
)

// Result is the output of a retrieval. Either list may be empty when the
// corresponding backend failed.
type Result struct {
	VectorHits []common.VectorHit `json:"vector_hits"`
	GraphHits  []common.EntityHit `json:"graph_hits"`
}

// EntityExtractor finds candidate entity names in passages. The result is a
// set; order carries no meaning.
type EntityExtractor interface {
	Extract(texts []string) []string
}

// RenderEntity formats a graph hit as "name (label1, label2)".
func RenderEntity(hit common.EntityHit) string {
	return fmt.Sprintf("%s (%s)", hit.Name, strings.Join(hit.Labels, ", "))
}

// MergeContext joins the first limit passages and the first limit rendered
// entities into one newline separated context. limit <= 0 selects
// DefaultContextLimit.
func MergeContext(r Result, limit int) string {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	lines := make([]string, 0, 2*limit)
	for i, hit := range r.VectorHits {
		if i == limit {
			break
		}
		lines = append(lines, hit.Text)
	}
	for i, hit := range r.GraphHits {
		if i == limit {
			break
		}
		lines = append(lines, RenderEntity(hit))
	}
	return strings.Join(lines, "\n")
}
