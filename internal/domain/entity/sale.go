package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale es la venta de origen del marketplace, consumida como contexto de solo
// lectura para construir el payload de una factura. El motor fiscal nunca la
// modifica; su ciclo de vida pertenece al dominio de ventas.
type Sale struct {
	ID            string
	ProviderID    string
	Descripcion   string
	Total         decimal.Decimal
	ClienteNombre string
	// Identificación fiscal del cliente (receptor del DTE).
	ClienteTipoDocumento   string // CAT-022
	ClienteNumeroDocumento string
	ClienteCorreo          string
	CreatedAt              time.Time
}
