package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartyDTO identidad de responsable/solicitante en eventos.
type PartyDTO struct {
	Nombre          string `json:"nombre"`
	TipoDocumento   string `json:"tipo_documento"`
	NumeroDocumento string `json:"numero_documento"`
}

// SubmitDTERequest body para POST /api/dte. Para facturas (01/03/14) SaleID es
// obligatorio y el monto sale de la venta; para notas (05/06) se indica el
// documento enmendado y el monto de la nota.
type SubmitDTERequest struct {
	TipoDte           string          `json:"tipo_dte"`
	SaleID            string          `json:"sale_id,omitempty"`
	RelatedDocumentID string          `json:"related_document_id,omitempty"`
	Monto             decimal.Decimal `json:"monto,omitempty"`
}

// InvalidateRequest body para POST /api/dte/:id/invalidar.
type InvalidateRequest struct {
	Motivo      string   `json:"motivo"`
	Responsable PartyDTO `json:"responsable"`
	Solicitante PartyDTO `json:"solicitante"`
}

// ContingencyReportRequest body para POST /api/contingencia: una ventana de
// interrupción que cubre uno o más documentos que quedaron en CONTINGENCIA.
type ContingencyReportRequest struct {
	DocumentIDs []string  `json:"document_ids"`
	Desde       time.Time `json:"desde"`
	Hasta       time.Time `json:"hasta"`
	Motivo      int       `json:"motivo"` // CAT-010
	Descripcion string    `json:"descripcion,omitempty"`
	Responsable PartyDTO  `json:"responsable"`
}

// DocumentResponse documento fiscal en respuestas.
type DocumentResponse struct {
	ID                string              `json:"id"`
	TipoDte           string              `json:"tipo_dte"`
	Estado            string              `json:"estado"`
	CodigoGeneracion  string              `json:"codigo_generacion,omitempty"`
	NumeroControl     string              `json:"numero_control,omitempty"`
	SelloRecepcion    string              `json:"sello_recepcion,omitempty"`
	Observaciones     []string            `json:"observaciones,omitempty"`
	Monto             decimal.NullDecimal `json:"monto,omitempty"`
	SaleID            string              `json:"sale_id,omitempty"`
	RelatedDocumentID string              `json:"related_document_id,omitempty"`
	ReportedCount     int                 `json:"reported_count,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// DocumentEstadoDTO respuesta ligera para el endpoint de polling
// GET /api/dte/:id/estado. El panel consulta este endpoint hasta que el
// estado sea PROCESADO, RECHAZADO o CONTINGENCIA.
type DocumentEstadoDTO struct {
	ID               string   `json:"id"`
	Estado           string   `json:"estado"`
	CodigoGeneracion string   `json:"codigo_generacion"`
	SelloRecepcion   string   `json:"sello_recepcion"`
	Observaciones    []string `json:"observaciones"`
}
