package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"github.com/rxtech-lab/token-atlas/internal/services"
)

// handleListTokens serves the filtered, paginated token listing, each row
// joined with its family's display name.
func (s *APIServer) handleListTokens(c *fiber.Ctx) error {
	filter := services.TokenFilter{
		Chain:     c.Query("chain"),
		Type:      c.Query("type"),
		FamilyID:  c.Query("familyId"),
		Symbol:    c.Query("symbol"),
		BaseAsset: c.Query("baseAsset"),
	}
	page := services.Pagination{
		Limit: c.QueryInt("limit", services.DefaultPageLimit),
		Skip:  c.QueryInt("skip", 0),
	}

	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	result, err := s.queryService.ListTokens(ctx, filter, page)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(result)
}

// handleGetToken serves the token detail view: the token, its family, every
// related token, grouped views over the related tokens, and the relationship
// graph with the viewed token highlighted.
func (s *APIServer) handleGetToken(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	token, err := s.tokenService.GetTokenByID(ctx, c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	family, err := s.familyService.GetFamilyByID(ctx, token.FamilyID)
	if err != nil {
		return handleError(c, err)
	}

	allTokens, err := s.tokenService.FindByFamily(ctx, token.FamilyID)
	if err != nil {
		return handleError(c, err)
	}

	related := make([]models.Token, 0, len(allTokens))
	for _, t := range allTokens {
		if t.ID != token.ID {
			related = append(related, t)
		}
	}

	var canonical *models.Token
	if family.CanonicalTokenID != nil {
		canonical, _ = s.tokenService.GetTokenByID(ctx, *family.CanonicalTokenID)
	}

	byType := s.graphService.GroupByKind(related)
	byChain := s.graphService.GroupByChain(related)
	graph := s.graphService.BuildGraph(token.ID, allTokens, family.CanonicalTokenID)

	return c.JSON(fiber.Map{
		"token": token,
		"family": fiber.Map{
			"family":         family,
			"canonicalToken": canonical,
		},
		"relatedTokens":  related,
		"groupedByType":  byType,
		"groupedByChain": byChain,
		"graphData":      graph,
		"stats": fiber.Map{
			"totalVariants": family.TotalVariants,
			"chains":        len(family.Chains),
			"types":         len(byType.Keys) + 1, // +1 for the viewed token
		},
	})
}
