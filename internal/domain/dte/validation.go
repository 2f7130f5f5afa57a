// Package dte contiene las precondiciones de negocio del ciclo de vida DTE
// (El Salvador). Son funciones puras: reciben el documento candidato y los
// documentos referenciados que el caller ya consultó, y devuelven nil o un
// error envuelto en domain.ErrValidacion. Nunca tocan almacenamiento.
package dte

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mercadolocal-sv/dte-engine/internal/domain"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
)

// CanCreateNote verifica que se pueda emitir una nota de crédito o débito
// contra target. Solo los CCF (03) aceptados admiten notas; una nota de
// crédito no puede exceder el monto del documento enmendado.
func CanCreateNote(target *entity.Document, tipoNota string, monto decimal.Decimal) error {
	if target == nil {
		return fmt.Errorf("%w: documento enmendado no existe", domain.ErrNotFound)
	}
	if tipoNota != entity.TipoNotaCredito && tipoNota != entity.TipoNotaDebito {
		return fmt.Errorf("%w: tipo de nota inválido %q", domain.ErrValidacion, tipoNota)
	}
	if target.TipoDte != entity.TipoCreditoFiscal {
		return fmt.Errorf("%w: las notas solo aplican a Crédito Fiscal (03), el documento es tipo %s",
			domain.ErrValidacion, target.TipoDte)
	}
	if target.Estado != entity.EstadoProcesado {
		return fmt.Errorf("%w: el documento enmendado debe estar PROCESADO, está %s",
			domain.ErrValidacion, target.Estado)
	}
	if !monto.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: el monto de la nota debe ser positivo", domain.ErrValidacion)
	}
	if tipoNota == entity.TipoNotaCredito && target.Monto.Valid && monto.GreaterThan(target.Monto.Decimal) {
		return fmt.Errorf("%w: la nota de crédito (%s) excede el monto del documento enmendado (%s)",
			domain.ErrValidacion, monto.StringFixed(2), target.Monto.Decimal.StringFixed(2))
	}
	return nil
}

// CanInvalidate verifica que target admita invalidación: debe tener código de
// generación y sello de recepción (fue aceptado por el MH) y no tener ya un
// evento de invalidación registrado. existing es el evento previo que el
// caller buscó, o nil.
func CanInvalidate(target *entity.Document, existing *entity.Document) error {
	if target == nil {
		return fmt.Errorf("%w: documento a anular no existe", domain.ErrNotFound)
	}
	if !target.HasAcceptanceProof() {
		return fmt.Errorf("%w: solo se invalida un documento aceptado por el MH (con código de generación y sello)",
			domain.ErrValidacion)
	}
	if existing != nil {
		return fmt.Errorf("%w: el documento ya tiene un evento de invalidación (%s)",
			domain.ErrValidacion, existing.ID)
	}
	return nil
}

// CanEmitContingency verifica que doc pueda transmitirse por la vía normal de
// emisión/contingencia. Un documento que ya tiene código de generación fue
// aceptado: no hay nada que reportar y reenviarlo rompería la idempotencia.
// La re-emisión de un documento ya aceptado exige duplicarlo explícitamente.
func CanEmitContingency(doc *entity.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: documento no existe", domain.ErrNotFound)
	}
	if doc.CodigoGeneracion != "" {
		return fmt.Errorf("%w: el documento ya fue aceptado por el MH (código %s)",
			domain.ErrValidacion, doc.CodigoGeneracion)
	}
	return nil
}

// CanDuplicateForContingency siempre autoriza la duplicación: su propósito es
// justamente producir una instancia nueva re-transmisible, sin importar si el
// original ya tiene código de generación. La instancia nueva arranca en
// PENDIENTE sin identificadores heredados (ver entity.Document.Duplicate).
func CanDuplicateForContingency(doc *entity.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: documento no existe", domain.ErrNotFound)
	}
	if doc.TipoDte == entity.TipoInvalidacion || doc.TipoDte == entity.TipoContingencia {
		return fmt.Errorf("%w: los eventos no se duplican, se vuelven a crear", domain.ErrValidacion)
	}
	return nil
}
