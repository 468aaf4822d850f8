package api

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rxtech-lab/token-atlas/internal/api/middleware"
	"github.com/rxtech-lab/token-atlas/internal/apperrors"
	"github.com/rxtech-lab/token-atlas/internal/services"
)

// ServerConfig carries the API server's runtime knobs.
type ServerConfig struct {
	// JWTSecret enables bearer auth on mutating endpoints when non-empty.
	JWTSecret string
	// StoreTimeout bounds every store call made on behalf of a request.
	StoreTimeout time.Duration
}

type APIServer struct {
	app           *fiber.App
	chainService  services.ChainService
	tokenService  services.TokenService
	familyService services.FamilyService
	queryService  services.QueryService
	graphService  services.GraphService
	storeTimeout  time.Duration
	port          int
}

func NewAPIServer(
	chainService services.ChainService,
	tokenService services.TokenService,
	familyService services.FamilyService,
	queryService services.QueryService,
	graphService services.GraphService,
	cfg ServerConfig,
) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Add middleware
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	server := &APIServer{
		app:           app,
		chainService:  chainService,
		tokenService:  tokenService,
		familyService: familyService,
		queryService:  queryService,
		graphService:  graphService,
		storeTimeout:  timeout,
	}
	server.setupRoutes(cfg)
	return server
}

func (s *APIServer) setupRoutes(cfg ServerConfig) {
	auth := middleware.AuthMiddleware(middleware.AuthConfig{Secret: cfg.JWTSecret})

	s.app.Post("/api/ingest", auth, s.handleIngest)

	s.app.Get("/api/tokens", s.handleListTokens)
	s.app.Get("/api/tokens/:id", s.handleGetToken)

	s.app.Get("/api/families", s.handleListFamilies)
	s.app.Get("/api/families/:id", s.handleGetFamily)
	s.app.Post("/api/families/:id/resolve", auth, s.handleResolveFamily)

	s.app.Get("/api/chains", s.handleListChains)

	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
}

// App exposes the underlying Fiber app for in-process testing.
func (s *APIServer) App() *fiber.App {
	return s.app
}

// Start starts the server on the given port, or a random available port when
// port is zero. Returns the bound port.
func (s *APIServer) Start(port int) (int, error) {
	if port == 0 {
		listener, err := net.Listen("tcp", ":0")
		if err != nil {
			return 0, fmt.Errorf("failed to find available port: %w", err)
		}
		port = listener.Addr().(*net.TCPAddr).Port
		listener.Close()
	}
	s.port = port

	go func() {
		if err := s.app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			log.Printf("Error starting API server: %v\n", err)
		}
	}()

	return port, nil
}

// Shutdown gracefully stops the server
func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}

// handleError maps a typed service error onto an HTTP response. Nothing
// escapes as an uncategorized failure.
func handleError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	status := fiber.StatusInternalServerError
	switch appErr.Kind {
	case apperrors.KindInvalidInput:
		status = fiber.StatusBadRequest
	case apperrors.KindNotFound:
		status = fiber.StatusNotFound
	case apperrors.KindConflict:
		status = fiber.StatusConflict
	case apperrors.KindTransient:
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"error": appErr.Message,
	})
}
