package repository

import (
	"context"

	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
)

// SaleRepository acceso de solo lectura al contexto de ventas del marketplace.
// El motor fiscal consulta la venta para armar el payload; nunca la muta.
type SaleRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
}
