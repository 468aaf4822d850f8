package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/token-atlas/internal/services"
)

// handleIngest accepts a token batch with optional chain reference data,
// upserts every token, and re-resolves each affected family exactly once.
func (s *APIServer) handleIngest(c *fiber.Ctx) error {
	var req services.IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request: tokens array is required",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	result, err := s.familyService.Ingest(ctx, req)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"families": result.Families,
		"failures": result.Failures,
		"message": fmt.Sprintf("Successfully processed %d tokens across %d families",
			result.Inserted+result.Updated, len(result.Families)),
	})
}

// handleListChains returns the chain registry.
func (s *APIServer) handleListChains(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), s.storeTimeout)
	defer cancel()

	chains, err := s.chainService.ListChains(ctx)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"chains": chains})
}
