package http

import (
	"github.com/gofiber/fiber/v2"

	appdte "github.com/mercadolocal-sv/dte-engine/internal/application/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/application/dto"
)

// ContingencyHandler maneja el flujo de contingencia (protegido).
type ContingencyHandler struct {
	coord *appdte.ContingencyCoordinator
}

// NewContingencyHandler construye el handler.
func NewContingencyHandler(coord *appdte.ContingencyCoordinator) *ContingencyHandler {
	return &ContingencyHandler{coord: coord}
}

// ListPending lista los documentos en CONTINGENCIA sin reportar.
// GET /api/contingencia
func (h *ContingencyHandler) ListPending(c *fiber.Ctx) error {
	docs, err := h.coord.ListPending(c.Context())
	if err != nil {
		return respondDomainError(c, err)
	}
	out := make([]*dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	return c.JSON(out)
}

// CreateReport crea el evento de contingencia y lo transmite al MH.
// POST /api/contingencia
func (h *ContingencyHandler) CreateReport(c *fiber.Ctx) error {
	var in dto.ContingencyReportRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	event, err := h.coord.CreateReport(c.Context(), in)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(event))
}

// Duplicate clona un documento para re-emitirlo con identidad nueva.
// POST /api/dte/:id/duplicar
func (h *ContingencyHandler) Duplicate(c *fiber.Ctx) error {
	dup, err := h.coord.Duplicate(c.Context(), c.Params("id"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(dup))
}
