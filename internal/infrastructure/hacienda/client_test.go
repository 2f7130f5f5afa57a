package hacienda_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/hacienda"
)

// mhServer simula la API de recepción del MH: auth con token fijo y un
// handler configurable para los endpoints de recepción.
type mhServer struct {
	*httptest.Server
	authCalls        int32
	recepcionCalls   int32
	contingenciaCall int32
	lastAuthHeader   string
	reception        http.HandlerFunc
}

func newMHServer(t *testing.T, reception http.HandlerFunc) *mhServer {
	t.Helper()
	s := &mhServer{reception: reception}
	mux := http.NewServeMux()
	mux.HandleFunc("/seguridad/auth", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.authCalls, 1)
		require.NoError(t, r.ParseForm())
		if r.Form.Get("user") != "emisor@test.sv" || r.Form.Get("pwd") != "secreta" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"body":   map[string]string{"token": "Bearer TOKEN-MH"},
		})
	})
	mux.HandleFunc("/fesv/recepciondte", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.recepcionCalls, 1)
		s.lastAuthHeader = r.Header.Get("Authorization")
		s.reception(w, r)
	})
	mux.HandleFunc("/fesv/contingencia", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.contingenciaCall, 1)
		s.lastAuthHeader = r.Header.Get("Authorization")
		s.reception(w, r)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *mhServer) client() *hacienda.RESTClient {
	return hacienda.NewRESTClient(s.URL, "emisor@test.sv", "secreta", nil)
}

func respondeJSON(body map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(body)
	}
}

func payloadPrueba() *hacienda.DTEPayload {
	return &hacienda.DTEPayload{
		Ambiente: "00",
		IDEnvio:  "7D0E8E5B-3D1C-4E7A-9F2B-111111111111",
		Version:  1,
		TipoDte:  "01",
		Documento: &hacienda.DTEDocument{
			Identificacion: hacienda.Identificacion{Version: 1, Ambiente: "00", TipoDte: "01"},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Normalización de respuestas
// ──────────────────────────────────────────────────────────────────────────────

func TestTransmit_Aceptado(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{
		"estado":           "PROCESADO",
		"codigoGeneracion": "AAAA-BBBB",
		"selloRecibido":    "2026SELLO001",
	}))

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoAceptado, res.Resultado)
	assert.Equal(t, "AAAA-BBBB", res.CodigoGeneracion)
	assert.Equal(t, "2026SELLO001", res.SelloRecibido)
	assert.NotEmpty(t, res.Respuesta, "el cuerpo crudo se conserva como evidencia")
	assert.Equal(t, "Bearer TOKEN-MH", srv.lastAuthHeader)
}

func TestTransmit_Rechazado(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{
		"estado":        "RECHAZADO",
		"observaciones": []string{"NIT del emisor no coincide", "total mal calculado"},
	}))

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err, "el rechazo es un desenlace normalizado, no un error")

	assert.Equal(t, hacienda.ResultadoRechazado, res.Resultado)
	assert.Equal(t, []string{"NIT del emisor no coincide", "total mal calculado"}, res.Observaciones)
	assert.Empty(t, res.CodigoGeneracion)
}

func TestTransmit_RechazadoSinObservacionesUsaDescripcion(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{
		"estado":         "RECHAZADO",
		"descripcionMsg": "esquema del documento inválido",
	}))

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoRechazado, res.Resultado)
	assert.Equal(t, []string{"esquema del documento inválido"}, res.Observaciones)
}

func TestTransmit_ProcesadoSinSelloNoEsAceptacion(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{
		"estado":           "PROCESADO",
		"codigoGeneracion": "AAAA-BBBB",
	}))

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado,
		"sin sello no hay comprobante: la respuesta es inutilizable")
	assert.Contains(t, res.Motivo, "PROCESADO sin código de generación o sello")
}

func TestTransmit_HTTP500(t *testing.T) {
	srv := newMHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado)
	assert.Contains(t, res.Motivo, "HTTP 500")
}

func TestTransmit_RespuestaNoParseable(t *testing.T) {
	srv := newMHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>mantenimiento</html>")
	})

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado)
	assert.Contains(t, res.Motivo, "no parseable")
	assert.Contains(t, res.Respuesta, "mantenimiento")
}

func TestTransmit_EstadoDesconocido(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{"estado": "EN_COLA"}))

	res, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado)
	assert.Contains(t, res.Motivo, "EN_COLA")
}

func TestTransmit_ServidorCaido(t *testing.T) {
	srv := newMHServer(t, respondeJSON(nil))
	cli := srv.client()
	srv.Close()

	res, err := cli.Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err, "una caída de red jamás debe subir como error")

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado)
	assert.Contains(t, res.Motivo, "autenticación MH")
}

func TestTransmit_AuthFallida(t *testing.T) {
	srv := newMHServer(t, respondeJSON(nil))
	cli := hacienda.NewRESTClient(srv.URL, "emisor@test.sv", "incorrecta", nil)

	res, err := cli.Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado)
	assert.Contains(t, res.Motivo, "autenticación MH")
	assert.Zero(t, atomic.LoadInt32(&srv.recepcionCalls), "sin token no se intenta la recepción")
}

// ──────────────────────────────────────────────────────────────────────────────
// Token, modos y firma
// ──────────────────────────────────────────────────────────────────────────────

func TestTransmit_TokenSeCachea(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{
		"estado":           "PROCESADO",
		"codigoGeneracion": "X",
		"selloRecibido":    "Y",
	}))
	cli := srv.client()

	for i := 0; i < 3; i++ {
		_, err := cli.Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.authCalls),
		"el token de 24 h se reutiliza entre transmisiones")
	assert.Equal(t, int32(3), atomic.LoadInt32(&srv.recepcionCalls))
}

func TestTransmit_ModoContingenciaUsaSuEndpoint(t *testing.T) {
	srv := newMHServer(t, respondeJSON(map[string]any{
		"estado":           "PROCESADO",
		"codigoGeneracion": "X",
		"selloRecibido":    "Y",
	}))

	_, err := srv.client().Transmit(context.Background(), payloadPrueba(), hacienda.ModoContingencia)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.contingenciaCall))
	assert.Zero(t, atomic.LoadInt32(&srv.recepcionCalls))
}

func TestTransmit_ModoDesconocidoEsErrorDeProgramacion(t *testing.T) {
	srv := newMHServer(t, respondeJSON(nil))

	_, err := srv.client().Transmit(context.Background(), payloadPrueba(), "batch")
	assert.Error(t, err)
}

type firmadorRoto struct{}

func (firmadorRoto) Sign(context.Context, *hacienda.DTEDocument) (string, error) {
	return "", fmt.Errorf("connection refused")
}

func TestTransmit_FirmadorCaidoEsNoDisponible(t *testing.T) {
	srv := newMHServer(t, respondeJSON(nil))
	cli := hacienda.NewRESTClient(srv.URL, "emisor@test.sv", "secreta", firmadorRoto{})

	res, err := cli.Transmit(context.Background(), payloadPrueba(), hacienda.ModoNormal)
	require.NoError(t, err)

	assert.Equal(t, hacienda.ResultadoNoDisponible, res.Resultado)
	assert.Contains(t, res.Motivo, "firmador")
	assert.Zero(t, atomic.LoadInt32(&srv.authCalls), "si no hay firma no se toca al MH")
}

// ──────────────────────────────────────────────────────────────────────────────
// Firmador
// ──────────────────────────────────────────────────────────────────────────────

func TestFirmadorClient_Sign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/firmardocumento/", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "0614-290590-102-1", in["nit"])
		assert.NotNil(t, in["dteJson"])
		json.NewEncoder(w).Encode(map[string]string{"status": "OK", "body": "eyJhbGciOi.JWS.FIRMADO"})
	}))
	defer srv.Close()

	cli := hacienda.NewFirmadorClient(srv.URL, "0614-290590-102-1", "clavePrivada")
	jws, err := cli.Sign(context.Background(), &hacienda.DTEDocument{})
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi.JWS.FIRMADO", jws)
}

func TestFirmadorClient_FirmaRechazada(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ERROR", "body": ""})
	}))
	defer srv.Close()

	cli := hacienda.NewFirmadorClient(srv.URL, "0614-290590-102-1", "clavePrivada")
	_, err := cli.Sign(context.Background(), &hacienda.DTEDocument{})
	assert.ErrorContains(t, err, "firma rechazada")
}