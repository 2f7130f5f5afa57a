package hacienda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ── Modos de procesamiento ────────────────────────────────────────────────────

const (
	// ModoNormal emisión en línea contra el endpoint de recepción.
	ModoNormal = "normal"
	// ModoContingencia reporte de lote de documentos emitidos en contingencia.
	ModoContingencia = "contingencia"
)

// ── Resultado normalizado ─────────────────────────────────────────────────────

// Resultados posibles de una transmisión. Cualquier falla de red, timeout,
// HTTP 5xx o respuesta malformada se normaliza a NO_DISPONIBLE, nunca a
// RECHAZADO: el rechazo es siempre una decisión explícita del MH.
const (
	ResultadoAceptado     = "ACEPTADO"
	ResultadoRechazado    = "RECHAZADO"
	ResultadoNoDisponible = "NO_DISPONIBLE"
)

// ReceptionResult desenlace normalizado de la entrega al MH.
type ReceptionResult struct {
	Resultado        string
	CodigoGeneracion string   // solo ACEPTADO
	SelloRecibido    string   // solo ACEPTADO
	Observaciones    []string // solo RECHAZADO (puede venir vacío)
	Respuesta        string   // cuerpo crudo de la respuesta del MH
	Motivo           string   // solo NO_DISPONIBLE: razón de la falla
}

// Transmitter define el puerto de salida hacia el servicio de recepción del
// MH. Es el único componente autorizado a hacer I/O contra Hacienda; para
// tests se inyecta un fake.
type Transmitter interface {
	// Transmit entrega el payload al MH en el modo indicado y normaliza la
	// respuesta. err solo para fallos de programación (modo inválido, payload
	// imposible de serializar); los fallos de red viajan en el resultado.
	Transmit(ctx context.Context, payload *DTEPayload, modo string) (*ReceptionResult, error)
}

// Signer firma el documento DTE y devuelve el JWS compacto. La implementación
// concreta delega en el servicio firmador externo del contribuyente; nil
// deshabilita la firma (ambiente de pruebas local).
type Signer interface {
	Sign(ctx context.Context, doc *DTEDocument) (string, error)
}

// ── Implementación REST ───────────────────────────────────────────────────────

const (
	pathAuth         = "/seguridad/auth"
	pathRecepcionDTE = "/fesv/recepciondte"
	pathContingencia = "/fesv/contingencia"

	maxResponseBytes = 1 << 20 // 1 MB
)

// RESTClient implementa Transmitter contra la API de recepción del MH.
// Cachea el token de /seguridad/auth hasta su expiración.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	usuario    string
	password   string
	signer     Signer

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

var _ Transmitter = (*RESTClient)(nil)

// NewRESTClient construye el cliente con un timeout de red generoso (60 s):
// el servicio de recepción del MH puede tardar varios segundos bajo carga.
func NewRESTClient(baseURL, usuario, password string, signer Signer) *RESTClient {
	return &RESTClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		usuario:    usuario,
		password:   password,
		signer:     signer,
	}
}

// Transmit firma (si aplica), entrega y normaliza la respuesta del MH.
func (c *RESTClient) Transmit(ctx context.Context, payload *DTEPayload, modo string) (*ReceptionResult, error) {
	var path string
	switch modo {
	case ModoNormal:
		path = pathRecepcionDTE
	case ModoContingencia:
		path = pathContingencia
	default:
		return nil, fmt.Errorf("hacienda: modo desconocido %q", modo)
	}

	// Firma vía servicio externo. Si el firmador no responde, el documento no
	// puede llegar al MH: para el ciclo de vida es la misma no disponibilidad
	// que una caída de Hacienda y se resuelve por la vía de contingencia.
	if c.signer != nil {
		if doc, ok := payload.Documento.(*DTEDocument); ok {
			jws, err := c.signer.Sign(ctx, doc)
			if err != nil {
				return unavailable("firmador: " + err.Error()), nil
			}
			signed := *payload
			signed.Documento = jws
			payload = &signed
		}
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return unavailable("autenticación MH: " + err.Error()), nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("hacienda: serializar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hacienda: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return unavailable("timeout o cancelación: " + ctx.Err().Error()), nil
		}
		return unavailable("llamada HTTP fallida: " + err.Error()), nil
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return unavailable("leer respuesta: " + err.Error()), nil
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		r := unavailable(fmt.Sprintf("HTTP %d del servicio de recepción", resp.StatusCode))
		r.Respuesta = string(rawBody)
		return r, nil
	}

	return parseReception(rawBody), nil
}

// mhReceptionResponse respuesta del endpoint de recepción (2xx y 400 traen el
// mismo esquema con estado PROCESADO o RECHAZADO).
type mhReceptionResponse struct {
	Estado           string   `json:"estado"`
	CodigoGeneracion string   `json:"codigoGeneracion"`
	SelloRecibido    string   `json:"selloRecibido"`
	DescripcionMsg   string   `json:"descripcionMsg"`
	Observaciones    []string `json:"observaciones"`
}

// parseReception normaliza el cuerpo de la respuesta del MH.
func parseReception(rawBody []byte) *ReceptionResult {
	var mh mhReceptionResponse
	if err := json.Unmarshal(rawBody, &mh); err != nil {
		r := unavailable("respuesta del MH no parseable")
		r.Respuesta = string(rawBody)
		return r
	}

	switch mh.Estado {
	case "PROCESADO":
		if mh.CodigoGeneracion == "" || mh.SelloRecibido == "" {
			// Un PROCESADO sin identificadores no sirve como comprobante:
			// tratamos la respuesta como inutilizable, no como aceptación.
			r := unavailable("PROCESADO sin código de generación o sello")
			r.Respuesta = string(rawBody)
			return r
		}
		return &ReceptionResult{
			Resultado:        ResultadoAceptado,
			CodigoGeneracion: mh.CodigoGeneracion,
			SelloRecibido:    mh.SelloRecibido,
			Respuesta:        string(rawBody),
		}
	case "RECHAZADO":
		obs := mh.Observaciones
		if len(obs) == 0 && mh.DescripcionMsg != "" {
			obs = []string{mh.DescripcionMsg}
		}
		return &ReceptionResult{
			Resultado:     ResultadoRechazado,
			Observaciones: obs,
			Respuesta:     string(rawBody),
		}
	default:
		r := unavailable(fmt.Sprintf("estado desconocido %q en la respuesta del MH", mh.Estado))
		r.Respuesta = string(rawBody)
		return r
	}
}

// authenticate obtiene (o reutiliza) el token de /seguridad/auth.
func (c *RESTClient) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("user", c.usuario)
	form.Set("pwd", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathAuth,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d en auth", resp.StatusCode)
	}

	var authResp struct {
		Status string `json:"status"`
		Body   struct {
			Token string `json:"token"`
		} `json:"body"`
	}
	if err := json.Unmarshal(rawBody, &authResp); err != nil {
		return "", fmt.Errorf("respuesta de auth no parseable: %w", err)
	}
	if authResp.Body.Token == "" {
		return "", fmt.Errorf("auth sin token (status %q)", authResp.Status)
	}

	c.token = authResp.Body.Token
	// El MH emite tokens de 24 h; renovamos antes por margen de reloj.
	c.tokenExp = time.Now().Add(23 * time.Hour)
	return c.token, nil
}

func unavailable(motivo string) *ReceptionResult {
	return &ReceptionResult{Resultado: ResultadoNoDisponible, Motivo: motivo}
}
