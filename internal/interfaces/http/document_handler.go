package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	appdte "github.com/mercadolocal-sv/dte-engine/internal/application/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/application/dto"
	"github.com/mercadolocal-sv/dte-engine/internal/domain"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/repository"
)

// DocumentHandler maneja las peticiones HTTP del ciclo de vida DTE (protegido).
type DocumentHandler struct {
	orch *appdte.Orchestrator
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(orch *appdte.Orchestrator) *DocumentHandler {
	return &DocumentHandler{orch: orch}
}

// Submit crea y transmite un documento fiscal.
// POST /api/dte
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	var in dto.SubmitDTERequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.TipoDte == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo_dte es requerido"})
	}
	doc, err := h.orch.Submit(c.Context(), in)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(doc))
}

// GetByID obtiene el documento completo.
// GET /api/dte/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	doc, err := h.orch.GetDocument(c.Context(), c.Params("id"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(toDocumentResponse(doc))
}

// Estado consulta ligera para polling del panel.
// GET /api/dte/:id/estado
func (h *DocumentHandler) Estado(c *fiber.Ctx) error {
	doc, err := h.orch.GetDocument(c.Context(), c.Params("id"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(dto.DocumentEstadoDTO{
		ID:               doc.ID,
		Estado:           doc.Estado,
		CodigoGeneracion: doc.CodigoGeneracion,
		SelloRecepcion:   doc.SelloRecepcion,
		Observaciones:    doc.Observaciones,
	})
}

// List lista documentos con filtros opcionales estado y tipo_dte.
// GET /api/dte
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	docs, err := h.orch.ListDocuments(c.Context(), repository.DocumentFilter{
		Estado:  c.Query("estado"),
		TipoDte: c.Query("tipo_dte"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		return respondDomainError(c, err)
	}
	out := make([]*dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	return c.JSON(out)
}

// Invalidate registra y transmite la invalidación de un documento aceptado.
// POST /api/dte/:id/invalidar
func (h *DocumentHandler) Invalidate(c *fiber.Ctx) error {
	var in dto.InvalidateRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	event, err := h.orch.Invalidate(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(event))
}

// Emit retransmite un documento en PENDIENTE o CONTINGENCIA (reintento manual).
// POST /api/dte/:id/emitir
func (h *DocumentHandler) Emit(c *fiber.Ctx) error {
	doc, err := h.orch.Emit(c.Context(), c.Params("id"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(toDocumentResponse(doc))
}

func toDocumentResponse(d *entity.Document) *dto.DocumentResponse {
	if d == nil {
		return nil
	}
	return &dto.DocumentResponse{
		ID:                d.ID,
		TipoDte:           d.TipoDte,
		Estado:            d.Estado,
		CodigoGeneracion:  d.CodigoGeneracion,
		NumeroControl:     d.NumeroControl,
		SelloRecepcion:    d.SelloRecepcion,
		Observaciones:     d.Observaciones,
		Monto:             d.Monto,
		SaleID:            d.SaleID,
		RelatedDocumentID: d.RelatedDocumentID,
		ReportedCount:     d.ReportedCount,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// respondDomainError mapea la taxonomía de errores del dominio a códigos HTTP.
// ErrConflicto es el 409 de "transmisión en vuelo": el cliente debe esperar y
// consultar el estado, no reintentar a ciegas.
func respondDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidacion):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrConflicto):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "TRANSMISSION_IN_FLIGHT", Message: "el documento ya tiene una transmisión en curso"})
	case errors.Is(err, domain.ErrIntegridad):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INTEGRITY", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
