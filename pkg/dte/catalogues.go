// Package dte contiene catálogos y utilidades de identificadores alineados a
// la Normativa de Facturación Electrónica del Ministerio de Hacienda
// (El Salvador), versión 3 de los esquemas JSON.
package dte

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// Ambientes de destino (CAT-001).
// =============================================================================

const (
	AmbientePruebas    = "00" // Pruebas / certificación
	AmbienteProduccion = "01"
)

// =============================================================================
// CAT-022 - Tipos de documento de identificación del receptor.
// =============================================================================

const (
	DocIdentNIT       = "36"
	DocIdentDUI       = "13"
	DocIdentPasaporte = "03"
	DocIdentCarnet    = "02" // Carnet de residente
	DocIdentOtro      = "37"
)

// ValidIdentificationTypes contiene los tipos de documento de identificación válidos.
var ValidIdentificationTypes = map[string]bool{
	DocIdentNIT:       true,
	DocIdentDUI:       true,
	DocIdentPasaporte: true,
	DocIdentCarnet:    true,
	DocIdentOtro:      true,
}

// =============================================================================
// CAT-010 - Descripciones del tipo de contingencia.
// =============================================================================

var contingencyDescriptions = map[int]string{
	1: "No disponibilidad de sistema del MH",
	2: "No disponibilidad de sistema del emisor",
	3: "Falla en el suministro de servicio de Internet del emisor",
	4: "Falla en el suministro de servicio de energía eléctrica",
	5: "Otro",
}

// DescribeContingencia devuelve la descripción de catálogo de un motivo de
// contingencia, o cadena vacía si el código no existe.
func DescribeContingencia(motivo int) string {
	return contingencyDescriptions[motivo]
}

// =============================================================================
// Identificadores de documento.
// =============================================================================

// NewCodigoGeneracion genera un código de generación candidato: UUID v4 en
// mayúsculas, formato exigido por los esquemas del MH. El código definitivo
// del documento es siempre el que confirma la respuesta del MH.
func NewCodigoGeneracion() string {
	return strings.ToUpper(uuid.New().String())
}

// controlSeries devuelve el segmento de serie del número de control. Los
// eventos no tienen código CAT-002: usan una serie interna propia.
func controlSeries(tipoDte string) string {
	switch tipoDte {
	case "invalidacion":
		return "INV"
	case "contingencia":
		return "CON"
	default:
		return tipoDte
	}
}

// FormatNumeroControl arma el número de control correlativo de una serie:
//
//	DTE-<tipo>-<estable><pventa>-<correlativo de 15 dígitos>
//
// Ejemplo: DTE-03-M001P001-000000000000042. La unicidad por serie la da el
// correlativo atómico de la base de datos.
func FormatNumeroControl(tipoDte, codEstable, codPuntoVenta string, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("numero control: correlativo inválido %d", seq)
	}
	if codEstable == "" || codPuntoVenta == "" {
		return "", fmt.Errorf("numero control: establecimiento y punto de venta requeridos")
	}
	return fmt.Sprintf("DTE-%s-%s%s-%015d", controlSeries(tipoDte), codEstable, codPuntoVenta, seq), nil
}
