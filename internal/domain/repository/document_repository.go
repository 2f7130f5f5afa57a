package repository

import (
	"context"

	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
)

// DocumentFilter filtros para listados de documentos.
type DocumentFilter struct {
	Estado  string
	TipoDte string
	Limit   int
	Offset  int
}

// DocumentRepository define el puerto de persistencia de los documentos
// fiscales (DIP). Los documentos nunca se eliminan: son registros fiscales
// permanentes. La implementación debe garantizar:
//   - índice único sobre codigo_generacion no nulo (idempotencia global);
//   - índice único parcial sobre related_document_id para eventos de
//     invalidación (a lo sumo una invalidación por documento).
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Update(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	// GetForUpdate lee el documento con bloqueo de fila (FOR UPDATE); solo
	// tiene sentido dentro de una transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*entity.Document, error)
	// FindInvalidationFor busca el evento de invalidación que referencia a
	// targetID; nil si no existe.
	FindInvalidationFor(ctx context.Context, targetID string) (*entity.Document, error)
	// ListPendingContingency lista los documentos en CONTINGENCIA que aún no
	// fueron cerrados por un reporte aceptado.
	ListPendingContingency(ctx context.Context) ([]*entity.Document, error)

	// NextControlSequence devuelve el siguiente correlativo de la serie del
	// tipo de documento (atómico).
	NextControlSequence(ctx context.Context, tipoDte string) (int64, error)

	// Ítems de un evento de contingencia (documentos reportados).
	AddContingencyItems(ctx context.Context, eventID string, docIDs []string) error
	GetContingencyItems(ctx context.Context, eventID string) ([]string, error)
	// MarkReported asigna contingency_event_id a los documentos reportados
	// cuando el MH acepta el evento.
	MarkReported(ctx context.Context, docIDs []string, eventID string) error
}
