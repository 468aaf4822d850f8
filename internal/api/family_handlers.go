package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"github.com/rxtech-lab/token-atlas/internal/services"
)

// handleListFamilies serves the filtered, paginated family listing with each
// family's canonical-token projection attached.
func (s *APIServer) handleListFamilies(c *fiber.Ctx) error {
	filter := services.FamilyFilter{
		BaseAsset: c.Query("baseAsset"),
	}
	page := services.Pagination{
		Limit: c.QueryInt("limit", services.DefaultPageLimit),
		Skip:  c.QueryInt("skip", 0),
	}

	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	result, err := s.queryService.ListFamilies(ctx, filter, page)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(result)
}

// handleGetFamily serves the family detail view: the family, every member
// token, grouped views, the relationship graph, and per-group counts.
func (s *APIServer) handleGetFamily(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	family, err := s.familyService.GetFamilyByID(ctx, c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	tokens, err := s.tokenService.FindByFamily(ctx, family.FamilyID)
	if err != nil {
		return handleError(c, err)
	}

	var canonical *models.Token
	if family.CanonicalTokenID != nil {
		canonical, _ = s.tokenService.GetTokenByID(ctx, *family.CanonicalTokenID)
	}

	byType := s.graphService.GroupByKind(tokens)
	byChain := s.graphService.GroupByChain(tokens)
	graph := s.graphService.BuildGraph("", tokens, family.CanonicalTokenID)

	byTypeCounts := make(map[string]int, len(byType.Keys))
	for _, key := range byType.Keys {
		byTypeCounts[key] = len(byType.Get(key))
	}
	byChainCounts := make(map[string]int, len(byChain.Keys))
	for _, key := range byChain.Keys {
		byChainCounts[key] = len(byChain.Get(key))
	}

	return c.JSON(fiber.Map{
		"family": fiber.Map{
			"family":         family,
			"canonicalToken": canonical,
		},
		"tokens":         tokens,
		"groupedByType":  byType,
		"groupedByChain": byChain,
		"graphData":      graph,
		"stats": fiber.Map{
			"totalTokens": len(tokens),
			"byType":      byTypeCounts,
			"byChain":     byChainCounts,
			"chains":      len(family.Chains),
		},
	})
}

// handleResolveFamily forces a recompute of one family. Exposed for repair
// and backfill tooling; ingest already resolves implicitly.
func (s *APIServer) handleResolveFamily(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	family, err := s.familyService.ResolveFamily(ctx, c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"family": family})
}
