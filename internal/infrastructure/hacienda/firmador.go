package hacienda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FirmadorClient implementa Signer contra el servicio firmador local del
// contribuyente (el binario que distribuye el MH, normalmente en
// http://localhost:8113). El algoritmo de firma es asunto del firmador;
// aquí solo se entrega el JSON y se recibe el JWS compacto.
type FirmadorClient struct {
	httpClient *http.Client
	baseURL    string
	nit        string
	passPri    string
}

var _ Signer = (*FirmadorClient)(nil)

// NewFirmadorClient construye el cliente del firmador.
func NewFirmadorClient(baseURL, nit, passPri string) *FirmadorClient {
	return &FirmadorClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		nit:        nit,
		passPri:    passPri,
	}
}

// Sign envía el documento al firmador y devuelve el JWS.
func (c *FirmadorClient) Sign(ctx context.Context, doc *DTEDocument) (string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"nit":         c.nit,
		"activo":      true,
		"passwordPri": c.passPri,
		"dteJson":     doc,
	})
	if err != nil {
		return "", fmt.Errorf("firmador: serializar documento: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/firmardocumento/", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("firmador: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("firmador: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("firmador: leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("firmador: HTTP %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		Body   string `json:"body"`
	}
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return "", fmt.Errorf("firmador: respuesta no parseable: %w", err)
	}
	if out.Status != "OK" || out.Body == "" {
		return "", fmt.Errorf("firmador: firma rechazada (status %q)", out.Status)
	}
	return out.Body, nil
}
