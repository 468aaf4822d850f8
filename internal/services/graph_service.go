package services

import (
	"encoding/json"
	"fmt"

	"github.com/rxtech-lab/token-atlas/internal/models"
)

// GraphNode is one token in the relationship graph.
type GraphNode struct {
	ID          string             `json:"id"`
	Label       string             `json:"label"`
	Type        models.VariantKind `json:"type"`
	Chain       string             `json:"chain"`
	IsCanonical bool               `json:"isCanonical"`
}

// GraphEdge connects the hub token to one family member, labeled with the
// target's variant kind.
type GraphEdge struct {
	From string             `json:"from"`
	To   string             `json:"to"`
	Type models.VariantKind `json:"type"`
}

// Graph is the node/edge view of one family.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TokenGrouping is an ordered mapping from group key to members. Keys appear
// in first-seen order; members keep their relative order from the source
// sequence. Serializes as a plain JSON object.
type TokenGrouping struct {
	Keys   []string
	Groups map[string][]models.Token
}

func (g TokenGrouping) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Groups)
}

// Get returns the members for a key.
func (g TokenGrouping) Get(key string) []models.Token {
	return g.Groups[key]
}

// GraphService derives graph and grouped views for a resolved family. It is
// read-only: no persisted side effects, safe to invoke arbitrarily often.
type GraphService interface {
	// BuildGraph produces the star graph for a family. The canonical token is
	// the hub; when none exists the viewed token substitutes. currentTokenID
	// may be empty for the family-level view.
	BuildGraph(currentTokenID string, tokens []models.Token, canonicalTokenID *string) Graph
	GroupByKind(tokens []models.Token) TokenGrouping
	GroupByChain(tokens []models.Token) TokenGrouping
}

type graphService struct{}

// NewGraphService creates a new GraphService
func NewGraphService() GraphService {
	return &graphService{}
}

func (s *graphService) BuildGraph(currentTokenID string, tokens []models.Token, canonicalTokenID *string) Graph {
	graph := Graph{
		Nodes: make([]GraphNode, 0, len(tokens)),
		Edges: make([]GraphEdge, 0),
	}

	for _, t := range tokens {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:          t.ID,
			Label:       fmt.Sprintf("%s (%s)", t.Symbol, t.Chain),
			Type:        t.Kind,
			Chain:       t.Chain,
			IsCanonical: t.IsCanonical,
		})
	}

	hub := ""
	if canonicalTokenID != nil && containsToken(tokens, *canonicalTokenID) {
		hub = *canonicalTokenID
	} else if currentTokenID != "" {
		hub = currentTokenID
	}
	if hub == "" {
		return graph
	}

	for _, t := range tokens {
		if t.ID == hub {
			continue
		}
		graph.Edges = append(graph.Edges, GraphEdge{
			From: hub,
			To:   t.ID,
			Type: t.Kind,
		})
	}
	return graph
}

func (s *graphService) GroupByKind(tokens []models.Token) TokenGrouping {
	return groupTokens(tokens, func(t models.Token) string { return string(t.Kind) })
}

func (s *graphService) GroupByChain(tokens []models.Token) TokenGrouping {
	return groupTokens(tokens, func(t models.Token) string { return t.Chain })
}

// groupTokens is the single grouping operation shared by the kind- and
// chain-based views.
func groupTokens(tokens []models.Token, keyOf func(models.Token) string) TokenGrouping {
	grouping := TokenGrouping{Groups: make(map[string][]models.Token)}
	for _, t := range tokens {
		key := keyOf(t)
		if _, ok := grouping.Groups[key]; !ok {
			grouping.Keys = append(grouping.Keys, key)
		}
		grouping.Groups[key] = append(grouping.Groups[key], t)
	}
	return grouping
}

func containsToken(tokens []models.Token, id string) bool {
	for _, t := range tokens {
		if t.ID == id {
			return true
		}
	}
	return false
}
