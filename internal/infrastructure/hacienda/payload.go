package hacienda

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	pkgdte "github.com/mercadolocal-sv/dte-engine/pkg/dte"
)

// Versiones de esquema JSON del MH.
const (
	versionFactura = 1
	versionCCF     = 3
	versionFSE     = 1
	versionEvento  = 2
)

// EmitterConfig datos fiscales del emisor con los que se arma todo payload.
type EmitterConfig struct {
	NIT           string
	NRC           string
	Nombre        string
	CodEstable    string // código de establecimiento MH (ej. M001)
	CodPuntoVenta string // código de punto de venta MH (ej. P001)
	Ambiente      string // CAT-001: "00" pruebas, "01" producción
}

// ── Estructuras del documento DTE (esquemas JSON MH v3) ───────────────────────

type Identificacion struct {
	Version          int     `json:"version"`
	Ambiente         string  `json:"ambiente"`
	TipoDte          string  `json:"tipoDte"`
	NumeroControl    string  `json:"numeroControl"`
	CodigoGeneracion string  `json:"codigoGeneracion"`
	TipoModelo       int     `json:"tipoModelo"`    // 1 previo, 2 diferido (contingencia)
	TipoOperacion    int     `json:"tipoOperacion"` // 1 normal, 2 contingencia
	TipoContingencia *int    `json:"tipoContingencia"`
	MotivoContin     *string `json:"motivoContin"`
	FecEmi           string  `json:"fecEmi"`
	HorEmi           string  `json:"horEmi"`
	TipoMoneda       string  `json:"tipoMoneda"`
}

type Emisor struct {
	NIT           string `json:"nit"`
	NRC           string `json:"nrc"`
	Nombre        string `json:"nombre"`
	CodEstable    string `json:"codEstable"`
	CodPuntoVenta string `json:"codPuntoVenta"`
}

type Receptor struct {
	Nombre          string `json:"nombre"`
	TipoDocumento   string `json:"tipoDocumento"`
	NumDocumento    string `json:"numDocumento"`
	Correo          string `json:"correo,omitempty"`
}

type Resumen struct {
	TotalGravada decimal.Decimal `json:"totalGravada"`
	TotalPagar   decimal.Decimal `json:"totalPagar"`
	CondicionOperacion int       `json:"condicionOperacion"` // 1 = contado
}

// DocumentoRelacionado referencia al documento enmendado (notas) o anulado
// (invalidación), con los identificadores que el MH le asignó.
type DocumentoRelacionado struct {
	TipoDocumento    string `json:"tipoDocumento"`
	CodigoGeneracion string `json:"codigoGeneracion"`
	NumeroControl    string `json:"numeroControl"`
	SelloRecepcion   string `json:"selloRecibido,omitempty"`
}

// MotivoInvalidacion bloque "motivo" del evento de invalidación.
type MotivoInvalidacion struct {
	MotivoAnulacion   string `json:"motivoAnulacion"`
	NombreResponsable string `json:"nombreResponsable"`
	TipDocResponsable string `json:"tipDocResponsable"`
	NumDocResponsable string `json:"numDocResponsable"`
	NombreSolicita    string `json:"nombreSolicita"`
	TipDocSolicita    string `json:"tipDocSolicita"`
	NumDocSolicita    string `json:"numDocSolicita"`
}

// MotivoContingencia bloque "motivo" del evento de contingencia.
type MotivoContingencia struct {
	FInicio           string `json:"fInicio"`
	FFin              string `json:"fFin"`
	HInicio           string `json:"hInicio"`
	HFin              string `json:"hFin"`
	TipoContingencia  int    `json:"tipoContingencia"`
	MotivoContingencia string `json:"motivoContingencia"`
	NombreResponsable string `json:"nombreResponsable"`
	TipDocResponsable string `json:"tipDocResponsable"`
	NumDocResponsable string `json:"numDocResponsable"`
}

// DetalleDTE un documento reportado dentro de un evento de contingencia.
type DetalleDTE struct {
	NoItem        int    `json:"noItem"`
	TipoDoc       string `json:"tipoDoc"`
	NumeroControl string `json:"numeroControl"`
}

// DTEDocument documento DTE completo previo a la firma. Motivo lleva
// MotivoInvalidacion o MotivoContingencia según el evento.
type DTEDocument struct {
	Identificacion       Identificacion        `json:"identificacion"`
	Emisor               Emisor                `json:"emisor"`
	Receptor             *Receptor             `json:"receptor,omitempty"`
	Resumen              *Resumen              `json:"resumen,omitempty"`
	DocumentoRelacionado *DocumentoRelacionado `json:"documento,omitempty"`
	Motivo               any                   `json:"motivo,omitempty"`
	DetalleDTE           []DetalleDTE          `json:"detalleDTE,omitempty"`
}

// DTEPayload sobre de envío al endpoint de recepción del MH. Documento es el
// DTEDocument sin firmar o el JWS compacto devuelto por el firmador.
type DTEPayload struct {
	Ambiente  string `json:"ambiente"`
	IDEnvio   string `json:"idEnvio"`
	Version   int    `json:"version"`
	TipoDte   string `json:"tipoDte"`
	Documento any    `json:"documento"`
}

// ── Builder ───────────────────────────────────────────────────────────────────

// PayloadBuilder convierte un entity.Document (más su contexto) al payload
// canónico que espera el MH. No realiza I/O.
type PayloadBuilder struct {
	emitter EmitterConfig
}

// NewPayloadBuilder construye el builder con los datos del emisor.
func NewPayloadBuilder(emitter EmitterConfig) *PayloadBuilder {
	return &PayloadBuilder{emitter: emitter}
}

// Build arma el payload del documento. sale es la venta de origen (solo
// facturas); related son los documentos referenciados: el enmendado/anulado
// para notas e invalidaciones, o los reportados para un evento de
// contingencia. modo decide tipoModelo/tipoOperacion (1/1 normal, 2/2
// contingencia). El documento debe traer ya su número de control asignado.
func (b *PayloadBuilder) Build(doc *entity.Document, sale *entity.Sale, related []*entity.Document, modo string) (*DTEPayload, error) {
	if doc.NumeroControl == "" {
		return nil, fmt.Errorf("payload: documento %s sin número de control", doc.ID)
	}

	now := time.Now()
	ident := Identificacion{
		Version:          schemaVersion(doc.TipoDte),
		Ambiente:         b.emitter.Ambiente,
		TipoDte:          doc.TipoDte,
		NumeroControl:    doc.NumeroControl,
		CodigoGeneracion: pkgdte.NewCodigoGeneracion(),
		TipoModelo:       1,
		TipoOperacion:    1,
		FecEmi:           now.Format("2006-01-02"),
		HorEmi:           now.Format("15:04:05"),
		TipoMoneda:       "USD",
	}
	if modo == ModoContingencia {
		ident.TipoModelo = 2
		ident.TipoOperacion = 2
		if doc.MotivoContingencia != 0 {
			motivo := doc.MotivoContingencia
			desc := doc.DescripcionMotivo
			if desc == "" {
				desc = pkgdte.DescribeContingencia(motivo)
			}
			ident.TipoContingencia = &motivo
			ident.MotivoContin = &desc
		}
	}

	dteDoc := &DTEDocument{
		Identificacion: ident,
		Emisor: Emisor{
			NIT:           b.emitter.NIT,
			NRC:           b.emitter.NRC,
			Nombre:        b.emitter.Nombre,
			CodEstable:    b.emitter.CodEstable,
			CodPuntoVenta: b.emitter.CodPuntoVenta,
		},
	}

	switch doc.TipoDte {
	case entity.TipoFacturaConsumidor, entity.TipoCreditoFiscal, entity.TipoFSE:
		if sale == nil {
			return nil, fmt.Errorf("payload: factura %s sin venta de origen", doc.ID)
		}
		dteDoc.Receptor = &Receptor{
			Nombre:        sale.ClienteNombre,
			TipoDocumento: sale.ClienteTipoDocumento,
			NumDocumento:  sale.ClienteNumeroDocumento,
			Correo:        sale.ClienteCorreo,
		}
		dteDoc.Resumen = resumenFromMonto(doc.Monto.Decimal)

	case entity.TipoNotaCredito, entity.TipoNotaDebito:
		target, err := singleRelated(doc, related)
		if err != nil {
			return nil, err
		}
		dteDoc.DocumentoRelacionado = relatedRef(target)
		dteDoc.Resumen = resumenFromMonto(doc.Monto.Decimal)

	case entity.TipoInvalidacion:
		target, err := singleRelated(doc, related)
		if err != nil {
			return nil, err
		}
		dteDoc.DocumentoRelacionado = relatedRef(target)
		dteDoc.Motivo = &MotivoInvalidacion{
			MotivoAnulacion:   doc.MotivoInvalidacion,
			NombreResponsable: doc.Responsable.Nombre,
			TipDocResponsable: doc.Responsable.TipoDocumento,
			NumDocResponsable: doc.Responsable.NumeroDocumento,
			NombreSolicita:    doc.Solicitante.Nombre,
			TipDocSolicita:    doc.Solicitante.TipoDocumento,
			NumDocSolicita:    doc.Solicitante.NumeroDocumento,
		}

	case entity.TipoContingencia:
		if len(related) == 0 {
			return nil, fmt.Errorf("payload: evento de contingencia %s sin documentos reportados", doc.ID)
		}
		for i, r := range related {
			dteDoc.DetalleDTE = append(dteDoc.DetalleDTE, DetalleDTE{
				NoItem:        i + 1,
				TipoDoc:       r.TipoDte,
				NumeroControl: r.NumeroControl,
			})
		}
		desc := doc.DescripcionMotivo
		if desc == "" {
			desc = pkgdte.DescribeContingencia(doc.MotivoContingencia)
		}
		dteDoc.Motivo = &MotivoContingencia{
			FInicio:            doc.ContingenciaDesde.Format("2006-01-02"),
			FFin:               doc.ContingenciaHasta.Format("2006-01-02"),
			HInicio:            doc.ContingenciaDesde.Format("15:04:05"),
			HFin:               doc.ContingenciaHasta.Format("15:04:05"),
			TipoContingencia:   doc.MotivoContingencia,
			MotivoContingencia: desc,
			NombreResponsable:  doc.Responsable.Nombre,
			TipDocResponsable:  doc.Responsable.TipoDocumento,
			NumDocResponsable:  doc.Responsable.NumeroDocumento,
		}

	default:
		return nil, fmt.Errorf("payload: tipo de documento desconocido %q", doc.TipoDte)
	}

	return &DTEPayload{
		Ambiente:  b.emitter.Ambiente,
		IDEnvio:   pkgdte.NewCodigoGeneracion(),
		Version:   ident.Version,
		TipoDte:   doc.TipoDte,
		Documento: dteDoc,
	}, nil
}

func schemaVersion(tipoDte string) int {
	switch tipoDte {
	case entity.TipoCreditoFiscal:
		return versionCCF
	case entity.TipoFSE:
		return versionFSE
	case entity.TipoInvalidacion, entity.TipoContingencia:
		return versionEvento
	default:
		return versionFactura
	}
}

func resumenFromMonto(monto decimal.Decimal) *Resumen {
	return &Resumen{
		TotalGravada:       monto,
		TotalPagar:         monto,
		CondicionOperacion: 1,
	}
}

func singleRelated(doc *entity.Document, related []*entity.Document) (*entity.Document, error) {
	if len(related) != 1 || related[0] == nil {
		return nil, fmt.Errorf("payload: documento %s requiere exactamente un documento relacionado", doc.ID)
	}
	return related[0], nil
}

func relatedRef(target *entity.Document) *DocumentoRelacionado {
	return &DocumentoRelacionado{
		TipoDocumento:    target.TipoDte,
		CodigoGeneracion: target.CodigoGeneracion,
		NumeroControl:    target.NumeroControl,
		SelloRecepcion:   target.SelloRecepcion,
	}
}
