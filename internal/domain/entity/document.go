package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgdte "github.com/mercadolocal-sv/dte-engine/pkg/dte"
)

// Tipos de DTE (catálogo CAT-002 del MH, El Salvador). Los eventos de
// invalidación y contingencia no tienen código numérico en el catálogo:
// se emiten contra endpoints propios del MH.
const (
	TipoFacturaConsumidor = "01" // Factura de consumidor final
	TipoCreditoFiscal     = "03" // Comprobante de Crédito Fiscal (CCF)
	TipoNotaCredito       = "05"
	TipoNotaDebito        = "06"
	TipoFSE               = "14" // Factura de Sujeto Excluido
	TipoInvalidacion      = "invalidacion"
	TipoContingencia      = "contingencia"
)

// Estados del ciclo de vida de un documento fiscal.
// PROCESADO y RECHAZADO son desenlaces estables de una transmisión;
// CONTINGENCIA es un estado de espera hasta el reporte o la duplicación;
// INVALIDADO es terminal. El documento original de una invalidación NO cambia
// de estado: la anulación queda registrada como evento aparte (ver norma MH).
const (
	EstadoPendiente    = "PENDIENTE"
	EstadoProcesado    = "PROCESADO"
	EstadoRechazado    = "RECHAZADO"
	EstadoContingencia = "CONTINGENCIA"
	EstadoInvalidado   = "INVALIDADO"
)

// Motivos de contingencia (catálogo CAT-010 del MH).
const (
	ContingenciaMHNoDisponible = 1 // No disponibilidad del sistema del MH
	ContingenciaFallaEmisor    = 2 // No disponibilidad del sistema del emisor
	ContingenciaFallaInternet  = 3 // Falla en el suministro de Internet del emisor
	ContingenciaFallaEnergia   = 4 // Falla en el suministro de energía eléctrica
	ContingenciaOtro           = 5 // Otro (requiere descripción)
)

// Party identifica a una persona responsable o solicitante de un evento
// (invalidación o contingencia). Los tres campos son obligatorios.
type Party struct {
	Nombre          string
	TipoDocumento   string // CAT-022: "36" NIT, "13" DUI, "03" pasaporte...
	NumeroDocumento string
}

// Validate verifica que la parte esté completa y que el número de documento
// sea coherente con su tipo (DUI y NIT se validan con las reglas del MH).
func (p Party) Validate(rol string) error {
	if p.Nombre == "" || p.TipoDocumento == "" || p.NumeroDocumento == "" {
		return fmt.Errorf("%s: nombre, tipo y número de documento son obligatorios", rol)
	}
	switch p.TipoDocumento {
	case pkgdte.DocIdentDUI:
		if err := pkgdte.ValidateDUI(p.NumeroDocumento); err != nil {
			return fmt.Errorf("%s: %w", rol, err)
		}
	case pkgdte.DocIdentNIT:
		if err := pkgdte.ValidateNIT(p.NumeroDocumento); err != nil {
			return fmt.Errorf("%s: %w", rol, err)
		}
	default:
		if !pkgdte.ValidIdentificationTypes[p.TipoDocumento] {
			return fmt.Errorf("%s: tipo de documento %q fuera del catálogo CAT-022", rol, p.TipoDocumento)
		}
	}
	return nil
}

// ContingencyWindow ventana de la interrupción declarada ante el MH.
type ContingencyWindow struct {
	Desde time.Time
	Hasta time.Time
}

// Document es el registro fiscal único del sistema. Identidad inmutable,
// campos de ciclo de vida mutables solo por el orquestador.
//
// CodigoGeneracion y SelloRecepcion se asignan juntos y únicamente con un
// desenlace PROCESADO de la transmisión; nunca por código cliente.
// CodigoGeneracion es globalmente único (índice único en DB): es la llave
// de idempotencia de todo el sistema.
type Document struct {
	ID               string
	TipoDte          string
	Estado           string
	CodigoGeneracion string // asignado por el MH al aceptar
	NumeroControl    string // correlativo por serie (tipo + emisor), asignado al construir el payload
	SelloRecepcion   string // comprobante de recepción del MH
	RespuestaMH      string // última respuesta cruda del MH (JSON)
	Observaciones    []string

	Monto  decimal.NullDecimal // nulo para eventos
	SaleID string              // venta de origen (facturas)

	// RelatedDocumentID: documento enmendado (notas), anulado (invalidación)
	// u original (duplicados por contingencia). Para eventos de contingencia
	// los documentos reportados van en la tabla contingency_items.
	RelatedDocumentID string

	// Campos de evento de invalidación.
	MotivoInvalidacion string
	Responsable        *Party
	Solicitante        *Party

	// Campos de evento de contingencia.
	MotivoContingencia  int
	DescripcionMotivo   string
	ContingenciaDesde   time.Time
	ContingenciaHasta   time.Time
	ReportedCount       int

	// ContingencyEventID: evento de contingencia que reportó este documento.
	// Un documento en CONTINGENCIA con este campo asignado ya fue cerrado por
	// un reporte aceptado y no vuelve a aparecer como candidato.
	ContingencyEventID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAcceptanceProof indica si el documento tiene código de generación y sello
// de recepción, es decir, si fue aceptado por el MH en algún momento.
func (d *Document) HasAcceptanceProof() bool {
	return d.CodigoGeneracion != "" && d.SelloRecepcion != ""
}

// IsNote indica si el documento es una nota de crédito o débito.
func (d *Document) IsNote() bool {
	return d.TipoDte == TipoNotaCredito || d.TipoDte == TipoNotaDebito
}

// newBase construye el esqueleto común de todo documento: identidad fresca,
// estado inicial PENDIENTE y sin identificadores del MH.
func newBase(tipo string) *Document {
	now := time.Now()
	return &Document{
		ID:        uuid.New().String(),
		TipoDte:   tipo,
		Estado:    EstadoPendiente,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewInvoice construye una factura (01, 03 o 14) a partir de una venta del
// marketplace. El monto proviene de la venta y debe ser positivo.
func NewInvoice(tipo, saleID string, monto decimal.Decimal) (*Document, error) {
	switch tipo {
	case TipoFacturaConsumidor, TipoCreditoFiscal, TipoFSE:
	default:
		return nil, fmt.Errorf("tipo de factura inválido: %q", tipo)
	}
	if saleID == "" {
		return nil, fmt.Errorf("factura: venta de origen requerida")
	}
	if !monto.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("factura: el monto debe ser positivo")
	}
	doc := newBase(tipo)
	doc.SaleID = saleID
	doc.Monto = decimal.NewNullDecimal(monto)
	return doc, nil
}

// NewCreditNote construye una nota de crédito contra un CCF. La regla
// monto ≤ monto del documento enmendado la verifica el validador con el
// documento de referencia a la vista.
func NewCreditNote(relatedID string, monto decimal.Decimal) (*Document, error) {
	return newNote(TipoNotaCredito, relatedID, monto)
}

// NewDebitNote construye una nota de débito contra un CCF. El monto no tiene
// tope pero debe ser estrictamente positivo.
func NewDebitNote(relatedID string, monto decimal.Decimal) (*Document, error) {
	return newNote(TipoNotaDebito, relatedID, monto)
}

func newNote(tipo, relatedID string, monto decimal.Decimal) (*Document, error) {
	if relatedID == "" {
		return nil, fmt.Errorf("nota: documento enmendado requerido")
	}
	if !monto.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("nota: el monto debe ser positivo")
	}
	doc := newBase(tipo)
	doc.RelatedDocumentID = relatedID
	doc.Monto = decimal.NewNullDecimal(monto)
	return doc, nil
}

// NewInvalidationEvent construye el evento de invalidación de un documento
// previamente aceptado. Exige motivo y las identidades completas del
// responsable y del solicitante.
func NewInvalidationEvent(relatedID, motivo string, responsable, solicitante Party) (*Document, error) {
	if relatedID == "" {
		return nil, fmt.Errorf("invalidación: documento a anular requerido")
	}
	if motivo == "" {
		return nil, fmt.Errorf("invalidación: motivo requerido")
	}
	if err := responsable.Validate("responsable"); err != nil {
		return nil, fmt.Errorf("invalidación: %w", err)
	}
	if err := solicitante.Validate("solicitante"); err != nil {
		return nil, fmt.Errorf("invalidación: %w", err)
	}
	doc := newBase(TipoInvalidacion)
	doc.RelatedDocumentID = relatedID
	doc.MotivoInvalidacion = motivo
	doc.Responsable = &responsable
	doc.Solicitante = &solicitante
	return doc, nil
}

// NewContingencyEvent construye el evento que reporta al MH un lote de
// documentos emitidos durante una interrupción. La descripción libre es
// obligatoria únicamente cuando el motivo es "otro" (CAT-010, código 5).
func NewContingencyEvent(docIDs []string, window ContingencyWindow, motivo int, descripcion string, responsable Party) (*Document, error) {
	if len(docIDs) == 0 {
		return nil, fmt.Errorf("contingencia: debe reportar al menos un documento")
	}
	if motivo < ContingenciaMHNoDisponible || motivo > ContingenciaOtro {
		return nil, fmt.Errorf("contingencia: motivo %d fuera del catálogo CAT-010", motivo)
	}
	if motivo == ContingenciaOtro && descripcion == "" {
		return nil, fmt.Errorf("contingencia: la descripción es obligatoria cuando el motivo es 'otro'")
	}
	if window.Desde.IsZero() || window.Hasta.IsZero() {
		return nil, fmt.Errorf("contingencia: ventana de interrupción requerida")
	}
	if !window.Hasta.After(window.Desde) {
		return nil, fmt.Errorf("contingencia: el fin de la ventana debe ser posterior al inicio")
	}
	if err := responsable.Validate("responsable"); err != nil {
		return nil, fmt.Errorf("contingencia: %w", err)
	}
	doc := newBase(TipoContingencia)
	doc.MotivoContingencia = motivo
	doc.DescripcionMotivo = descripcion
	doc.ContingenciaDesde = window.Desde
	doc.ContingenciaHasta = window.Hasta
	doc.ReportedCount = len(docIDs)
	doc.Responsable = &responsable
	return doc, nil
}

// Duplicate produce un documento nuevo con el mismo contenido comercial del
// original, identidad fresca, estado PENDIENTE y sin identificadores del MH
// heredados. Se usa para la re-emisión individual tras una contingencia.
// El puntero related_document_id se conserva tal cual: las notas siguen
// enmendando al mismo documento.
func (d *Document) Duplicate() *Document {
	dup := newBase(d.TipoDte)
	dup.Monto = d.Monto
	dup.SaleID = d.SaleID
	dup.RelatedDocumentID = d.RelatedDocumentID
	return dup
}
