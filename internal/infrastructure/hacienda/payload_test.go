package hacienda_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/hacienda"
)

func builderPrueba() *hacienda.PayloadBuilder {
	return hacienda.NewPayloadBuilder(hacienda.EmitterConfig{
		NIT:           "0614-290590-102-1",
		NRC:           "123456-7",
		Nombre:        "Mercado Local SV",
		CodEstable:    "M001",
		CodPuntoVenta: "P001",
		Ambiente:      "00",
	})
}

func ventaPrueba() *entity.Sale {
	return &entity.Sale{
		ID:                     "sale-1",
		Total:                  decimal.NewFromInt(113),
		ClienteNombre:          "Cliente Demo",
		ClienteTipoDocumento:   "13",
		ClienteNumeroDocumento: "01234567-2",
		ClienteCorreo:          "cliente@demo.sv",
	}
}

func facturaConControl(t *testing.T, tipo string) *entity.Document {
	t.Helper()
	doc, err := entity.NewInvoice(tipo, "sale-1", decimal.NewFromInt(113))
	require.NoError(t, err)
	doc.NumeroControl = "DTE-" + tipo + "-M001P001-000000000000001"
	return doc
}

func TestBuild_Factura(t *testing.T) {
	doc := facturaConControl(t, entity.TipoFacturaConsumidor)

	payload, err := builderPrueba().Build(doc, ventaPrueba(), nil, hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, "00", payload.Ambiente)
	assert.Equal(t, entity.TipoFacturaConsumidor, payload.TipoDte)
	assert.Equal(t, 1, payload.Version)

	dteDoc, ok := payload.Documento.(*hacienda.DTEDocument)
	require.True(t, ok)
	assert.Equal(t, 1, dteDoc.Identificacion.TipoModelo)
	assert.Equal(t, 1, dteDoc.Identificacion.TipoOperacion)
	assert.Nil(t, dteDoc.Identificacion.TipoContingencia)
	assert.Equal(t, "USD", dteDoc.Identificacion.TipoMoneda)
	assert.Equal(t, doc.NumeroControl, dteDoc.Identificacion.NumeroControl)
	assert.Equal(t, "0614-290590-102-1", dteDoc.Emisor.NIT)

	require.NotNil(t, dteDoc.Receptor)
	assert.Equal(t, "Cliente Demo", dteDoc.Receptor.Nombre)
	assert.Equal(t, "01234567-2", dteDoc.Receptor.NumDocumento)

	require.NotNil(t, dteDoc.Resumen)
	assert.True(t, dteDoc.Resumen.TotalPagar.Equal(decimal.NewFromInt(113)))
}

func TestBuild_CCFUsaSuVersionDeEsquema(t *testing.T) {
	doc := facturaConControl(t, entity.TipoCreditoFiscal)

	payload, err := builderPrueba().Build(doc, ventaPrueba(), nil, hacienda.ModoNormal)
	require.NoError(t, err)
	assert.Equal(t, 3, payload.Version)
}

func TestBuild_SinNumeroControl(t *testing.T) {
	doc, err := entity.NewInvoice(entity.TipoFacturaConsumidor, "sale-1", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = builderPrueba().Build(doc, ventaPrueba(), nil, hacienda.ModoNormal)
	assert.ErrorContains(t, err, "sin número de control")
}

func TestBuild_FacturaSinVenta(t *testing.T) {
	doc := facturaConControl(t, entity.TipoFacturaConsumidor)

	_, err := builderPrueba().Build(doc, nil, nil, hacienda.ModoNormal)
	assert.ErrorContains(t, err, "sin venta de origen")
}

func TestBuild_NotaReferenciaAlEnmendado(t *testing.T) {
	target := facturaConControl(t, entity.TipoCreditoFiscal)
	target.CodigoGeneracion = "CCF-CODIGO"
	target.SelloRecepcion = "CCF-SELLO"

	nota, err := entity.NewCreditNote(target.ID, decimal.NewFromInt(50))
	require.NoError(t, err)
	nota.NumeroControl = "DTE-05-M001P001-000000000000001"

	payload, err := builderPrueba().Build(nota, nil, []*entity.Document{target}, hacienda.ModoNormal)
	require.NoError(t, err)

	dteDoc := payload.Documento.(*hacienda.DTEDocument)
	require.NotNil(t, dteDoc.DocumentoRelacionado)
	assert.Equal(t, "CCF-CODIGO", dteDoc.DocumentoRelacionado.CodigoGeneracion)
	assert.Equal(t, "CCF-SELLO", dteDoc.DocumentoRelacionado.SelloRecepcion)
	assert.True(t, dteDoc.Resumen.TotalPagar.Equal(decimal.NewFromInt(50)),
		"el resumen lleva el monto de la nota, no el del enmendado")
}

func TestBuild_NotaSinRelacionado(t *testing.T) {
	nota, err := entity.NewCreditNote("target-1", decimal.NewFromInt(50))
	require.NoError(t, err)
	nota.NumeroControl = "DTE-05-M001P001-000000000000001"

	_, err = builderPrueba().Build(nota, nil, nil, hacienda.ModoNormal)
	assert.ErrorContains(t, err, "exactamente un documento relacionado")
}

func TestBuild_Invalidacion(t *testing.T) {
	target := facturaConControl(t, entity.TipoCreditoFiscal)
	target.CodigoGeneracion = "CCF-CODIGO"
	target.SelloRecepcion = "CCF-SELLO"

	resp := entity.Party{Nombre: "María Pérez", TipoDocumento: "13", NumeroDocumento: "01234567-2"}
	sol := entity.Party{Nombre: "Juan López", TipoDocumento: "36", NumeroDocumento: "0614-290590-102-1"}
	event, err := entity.NewInvalidationEvent(target.ID, "monto erróneo", resp, sol)
	require.NoError(t, err)
	event.NumeroControl = "DTE-INV-M001P001-000000000000001"

	payload, err := builderPrueba().Build(event, nil, []*entity.Document{target}, hacienda.ModoNormal)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.Version, "los eventos van con el esquema de eventos")

	dteDoc := payload.Documento.(*hacienda.DTEDocument)
	require.NotNil(t, dteDoc.DocumentoRelacionado)
	motivo, ok := dteDoc.Motivo.(*hacienda.MotivoInvalidacion)
	require.True(t, ok)
	assert.Equal(t, "monto erróneo", motivo.MotivoAnulacion)
	assert.Equal(t, "María Pérez", motivo.NombreResponsable)
	assert.Equal(t, "Juan López", motivo.NombreSolicita)
	assert.Nil(t, dteDoc.Resumen, "los eventos no llevan resumen comercial")
}

func TestBuild_EventoDeContingencia(t *testing.T) {
	d1 := facturaConControl(t, entity.TipoFacturaConsumidor)
	d2 := facturaConControl(t, entity.TipoCreditoFiscal)
	d2.NumeroControl = "DTE-03-M001P001-000000000000002"

	desde := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	resp := entity.Party{Nombre: "María Pérez", TipoDocumento: "13", NumeroDocumento: "01234567-2"}
	event, err := entity.NewContingencyEvent([]string{d1.ID, d2.ID},
		entity.ContingencyWindow{Desde: desde, Hasta: desde.Add(2 * time.Hour)},
		entity.ContingenciaMHNoDisponible, "", resp)
	require.NoError(t, err)
	event.NumeroControl = "DTE-CON-M001P001-000000000000001"

	payload, err := builderPrueba().Build(event, nil, []*entity.Document{d1, d2}, hacienda.ModoContingencia)
	require.NoError(t, err)

	dteDoc := payload.Documento.(*hacienda.DTEDocument)
	assert.Equal(t, 2, dteDoc.Identificacion.TipoModelo)
	assert.Equal(t, 2, dteDoc.Identificacion.TipoOperacion)
	require.NotNil(t, dteDoc.Identificacion.TipoContingencia)
	assert.Equal(t, entity.ContingenciaMHNoDisponible, *dteDoc.Identificacion.TipoContingencia)
	require.NotNil(t, dteDoc.Identificacion.MotivoContin)
	assert.NotEmpty(t, *dteDoc.Identificacion.MotivoContin,
		"sin descripción propia se usa la del catálogo CAT-010")

	require.Len(t, dteDoc.DetalleDTE, 2)
	assert.Equal(t, 1, dteDoc.DetalleDTE[0].NoItem)
	assert.Equal(t, d1.NumeroControl, dteDoc.DetalleDTE[0].NumeroControl)
	assert.Equal(t, 2, dteDoc.DetalleDTE[1].NoItem)

	motivo, ok := dteDoc.Motivo.(*hacienda.MotivoContingencia)
	require.True(t, ok)
	assert.Equal(t, "2026-03-10", motivo.FInicio)
	assert.Equal(t, "08:00:00", motivo.HInicio)
	assert.Equal(t, "María Pérez", motivo.NombreResponsable)
}

func TestBuild_EventoDeContingenciaSinDocumentos(t *testing.T) {
	desde := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	resp := entity.Party{Nombre: "María Pérez", TipoDocumento: "13", NumeroDocumento: "01234567-2"}
	event, err := entity.NewContingencyEvent([]string{"d1"},
		entity.ContingencyWindow{Desde: desde, Hasta: desde.Add(time.Hour)},
		entity.ContingenciaMHNoDisponible, "", resp)
	require.NoError(t, err)
	event.NumeroControl = "DTE-CON-M001P001-000000000000001"

	_, err = builderPrueba().Build(event, nil, nil, hacienda.ModoContingencia)
	assert.ErrorContains(t, err, "sin documentos reportados")
}