package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mercadolocal-sv/dte-engine/internal/application/auth"
	appdte "github.com/mercadolocal-sv/dte-engine/internal/application/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Orchestrator *appdte.Orchestrator
	Contingency  *appdte.ContingencyCoordinator
	AuthUC       *auth.AuthUseCase
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Documentos fiscales (protegido)
	docs := protected.Group("/dte")
	docHandler := NewDocumentHandler(deps.Orchestrator)
	contHandler := NewContingencyHandler(deps.Contingency)
	docs.Post("/", docHandler.Submit)
	docs.Get("/", docHandler.List)
	docs.Get("/:id", docHandler.GetByID)
	docs.Get("/:id/estado", docHandler.Estado)
	docs.Post("/:id/emitir", docHandler.Emit)
	// Invalidar anula un documento fiscal aceptado: solo admin.
	docs.Post("/:id/invalidar", RequireRole(entity.RoleAdmin), docHandler.Invalidate)
	docs.Post("/:id/duplicar", contHandler.Duplicate)

	// Contingencia (protegido)
	contingencia := protected.Group("/contingencia")
	contingencia.Get("/", contHandler.ListPending)
	contingencia.Post("/", contHandler.CreateReport)
}
