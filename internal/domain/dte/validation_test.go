package dte_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadolocal-sv/dte-engine/internal/domain"
	domdte "github.com/mercadolocal-sv/dte-engine/internal/domain/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
)

func ccfProcesado(t *testing.T, monto int64) *entity.Document {
	t.Helper()
	doc, err := entity.NewInvoice(entity.TipoCreditoFiscal, "sale-1", decimal.NewFromInt(monto))
	require.NoError(t, err)
	doc.Estado = entity.EstadoProcesado
	doc.CodigoGeneracion = "9F2C1A33-0000-4000-8000-000000000001"
	doc.SelloRecepcion = "20260000000000001"
	return doc
}

// ──────────────────────────────────────────────────────────────────────────────
// CanCreateNote
// ──────────────────────────────────────────────────────────────────────────────

func TestCanCreateNote_CCFProcesado(t *testing.T) {
	target := ccfProcesado(t, 100)
	assert.NoError(t, domdte.CanCreateNote(target, entity.TipoNotaCredito, decimal.NewFromInt(40)))
	assert.NoError(t, domdte.CanCreateNote(target, entity.TipoNotaDebito, decimal.NewFromInt(500)),
		"la nota de débito no tiene tope")
}

// Una nota contra un CCF que nunca fue aceptado debe rechazarse sin tocar la red.
func TestCanCreateNote_TargetNoProcesado(t *testing.T) {
	target := ccfProcesado(t, 100)
	target.Estado = entity.EstadoPendiente

	err := domdte.CanCreateNote(target, entity.TipoNotaCredito, decimal.NewFromInt(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidacion)
}

func TestCanCreateNote_SoloCCF(t *testing.T) {
	factura, err := entity.NewInvoice(entity.TipoFacturaConsumidor, "sale-1", decimal.NewFromInt(50))
	require.NoError(t, err)
	factura.Estado = entity.EstadoProcesado

	err = domdte.CanCreateNote(factura, entity.TipoNotaCredito, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrValidacion, "las notas solo aplican a CCF (03)")
}

func TestCanCreateNote_NotaCreditoExcedeMonto(t *testing.T) {
	target := ccfProcesado(t, 100)

	err := domdte.CanCreateNote(target, entity.TipoNotaCredito, decimal.NewFromInt(101))
	assert.ErrorIs(t, err, domain.ErrValidacion)

	assert.NoError(t, domdte.CanCreateNote(target, entity.TipoNotaCredito, decimal.NewFromInt(100)),
		"igualar el monto del CCF es válido")
}

func TestCanCreateNote_TargetInexistente(t *testing.T) {
	err := domdte.CanCreateNote(nil, entity.TipoNotaCredito, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// CanInvalidate
// ──────────────────────────────────────────────────────────────────────────────

func TestCanInvalidate_RequiereComprobanteDeAceptacion(t *testing.T) {
	target := ccfProcesado(t, 100)
	assert.NoError(t, domdte.CanInvalidate(target, nil))

	sinSello := ccfProcesado(t, 100)
	sinSello.SelloRecepcion = ""
	assert.ErrorIs(t, domdte.CanInvalidate(sinSello, nil), domain.ErrValidacion,
		"sin sello de recepción no hay nada que invalidar ante el MH")
}

func TestCanInvalidate_UnaSolaInvalidacionPorDocumento(t *testing.T) {
	target := ccfProcesado(t, 100)
	previa, err := entity.NewInvalidationEvent(target.ID, "monto erróneo",
		entity.Party{Nombre: "A", TipoDocumento: "13", NumeroDocumento: "01234567-2"},
		entity.Party{Nombre: "B", TipoDocumento: "13", NumeroDocumento: "01234567-2"})
	require.NoError(t, err)

	assert.ErrorIs(t, domdte.CanInvalidate(target, previa), domain.ErrValidacion)
}

// ──────────────────────────────────────────────────────────────────────────────
// CanEmitContingency / CanDuplicateForContingency
// ──────────────────────────────────────────────────────────────────────────────

// Un documento con código de generación ya fue aceptado: retransmitirlo por la
// vía de emisión rompería la idempotencia del registro fiscal.
func TestCanEmitContingency_RechazaDocumentoYaAceptado(t *testing.T) {
	doc, err := entity.NewInvoice(entity.TipoFacturaConsumidor, "sale-1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.NoError(t, domdte.CanEmitContingency(doc))

	doc.CodigoGeneracion = "9F2C1A33-0000-4000-8000-000000000001"
	assert.ErrorIs(t, domdte.CanEmitContingency(doc), domain.ErrValidacion)
}

func TestCanDuplicateForContingency(t *testing.T) {
	doc, err := entity.NewInvoice(entity.TipoCreditoFiscal, "sale-1", decimal.NewFromInt(10))
	require.NoError(t, err)
	doc.CodigoGeneracion = "YA-ACEPTADO"
	assert.NoError(t, domdte.CanDuplicateForContingency(doc),
		"duplicar produce una instancia nueva, el original puede estar en cualquier estado")

	ev, err := entity.NewInvalidationEvent("doc-1", "motivo",
		entity.Party{Nombre: "A", TipoDocumento: "13", NumeroDocumento: "01234567-2"},
		entity.Party{Nombre: "B", TipoDocumento: "13", NumeroDocumento: "01234567-2"})
	require.NoError(t, err)
	assert.ErrorIs(t, domdte.CanDuplicateForContingency(ev), domain.ErrValidacion,
		"los eventos no se duplican")
}
