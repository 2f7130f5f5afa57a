package dte

import (
	"context"

	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción con el repositorio de
// documentos atado a la tx. Todo cambio de estado del ciclo de vida se
// confirma o revierte completo.
type TxRunner interface {
	Run(ctx context.Context, fn func(docs repository.DocumentRepository) error) error
}

// DocumentLocker garantiza a lo sumo una transmisión en vuelo por documento.
// TryAcquire no bloquea: si el candado está tomado devuelve ok=false y el
// caller responde domain.ErrConflicto. release debe invocarse en todo camino
// de salida, incluido timeout.
type DocumentLocker interface {
	TryAcquire(ctx context.Context, documentID string) (release func(), ok bool, err error)
}

// Notifier notificación fire-and-forget tras una transición finalizada. El
// motor nunca espera ni revierte por una falla de notificación.
type Notifier interface {
	DocumentTransitioned(doc *entity.Document)
}
