package dte_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgdte "github.com/mercadolocal-sv/dte-engine/pkg/dte"
)

// El código de generación debe salir siempre en mayúsculas: los esquemas del
// MH rechazan UUID en minúsculas.
func TestNewCodigoGeneracion_FormatoMH(t *testing.T) {
	cg := pkgdte.NewCodigoGeneracion()
	assert.Len(t, cg, 36)
	assert.Equal(t, strings.ToUpper(cg), cg, "el código debe ir en mayúsculas")

	otro := pkgdte.NewCodigoGeneracion()
	assert.NotEqual(t, cg, otro, "dos códigos consecutivos no deben coincidir")
}

func TestFormatNumeroControl(t *testing.T) {
	cases := []struct {
		nombre  string
		tipoDte string
		seq     int64
		want    string
	}{
		{"CCF", "03", 42, "DTE-03-M001P001-000000000000042"},
		{"factura consumidor", "01", 1, "DTE-01-M001P001-000000000000001"},
		{"evento de invalidación usa serie INV", "invalidacion", 7, "DTE-INV-M001P001-000000000000007"},
		{"evento de contingencia usa serie CON", "contingencia", 3, "DTE-CON-M001P001-000000000000003"},
	}
	for _, c := range cases {
		t.Run(c.nombre, func(t *testing.T) {
			got, err := pkgdte.FormatNumeroControl(c.tipoDte, "M001", "P001", c.seq)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestFormatNumeroControl_Invalido(t *testing.T) {
	_, err := pkgdte.FormatNumeroControl("01", "M001", "P001", 0)
	assert.Error(t, err, "correlativo cero debe fallar")

	_, err = pkgdte.FormatNumeroControl("01", "", "P001", 1)
	assert.Error(t, err, "sin establecimiento debe fallar")
}

func TestDescribeContingencia(t *testing.T) {
	assert.Equal(t, "No disponibilidad de sistema del MH", pkgdte.DescribeContingencia(1))
	assert.Equal(t, "Otro", pkgdte.DescribeContingencia(5))
	assert.Empty(t, pkgdte.DescribeContingencia(9), "motivo fuera de catálogo devuelve vacío")
}
