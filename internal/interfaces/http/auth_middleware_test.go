package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadolocal-sv/dte-engine/internal/application/dto"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/pkg/jwt"
)

const testSecret = "secreto-de-prueba"

func newProtectedApp(extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{AuthMiddleware(testSecret)}, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": GetUserID(c), "role": GetRole(c)})
	})
	app.Get("/protegido", handlers...)
	return app
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", "/protegido", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

func tokenDe(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.Generate(testSecret, "user-1", role, "dte-engine", 30)
	require.NoError(t, err)
	return tok
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_SinHeader(t *testing.T) {
	status, body := doRequest(t, newProtectedApp(), "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_TOKEN", errorCode(t, body))
}

func TestAuthMiddleware_FormatoInvalido(t *testing.T) {
	status, body := doRequest(t, newProtectedApp(), "Basic abc123")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, body))
}

func TestAuthMiddleware_TokenBasura(t *testing.T) {
	status, body := doRequest(t, newProtectedApp(), "Bearer no.es.jwt")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, body))
}

func TestAuthMiddleware_TokenValidoExponeUsuarioYRol(t *testing.T) {
	status, body := doRequest(t, newProtectedApp(), "Bearer "+tokenDe(t, entity.RoleOperador))
	require.Equal(t, fiber.StatusOK, status)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "user-1", out["user_id"])
	assert.Equal(t, entity.RoleOperador, out["role"])
}

func TestAuthMiddleware_TokenExpirado(t *testing.T) {
	tok, err := jwt.Generate(testSecret, "user-1", entity.RoleAdmin, "dte-engine", -5)
	require.NoError(t, err)

	status, body := doRequest(t, newProtectedApp(), "Bearer "+tok)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, body))
}

func TestAuthMiddleware_SecretEquivocado(t *testing.T) {
	tok, err := jwt.Generate("otro-secreto", "user-1", entity.RoleAdmin, "dte-engine", 30)
	require.NoError(t, err)

	status, _ := doRequest(t, newProtectedApp(), "Bearer "+tok)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

// ──────────────────────────────────────────────────────────────────────────────
// RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole_AdminPermitido(t *testing.T) {
	app := newProtectedApp(RequireRole(entity.RoleAdmin))
	status, _ := doRequest(t, app, "Bearer "+tokenDe(t, entity.RoleAdmin))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRequireRole_OperadorRechazadoEnRutaAdmin(t *testing.T) {
	app := newProtectedApp(RequireRole(entity.RoleAdmin))
	status, body := doRequest(t, app, "Bearer "+tokenDe(t, entity.RoleOperador))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))
}

func TestRequireRole_TokenSinRol(t *testing.T) {
	app := newProtectedApp(RequireRole(entity.RoleAdmin))
	status, body := doRequest(t, app, "Bearer "+tokenDe(t, ""))
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_ROLE", errorCode(t, body))
}

func TestRequireRole_VariosRolesPermitidos(t *testing.T) {
	app := newProtectedApp(RequireRole(entity.RoleAdmin, entity.RoleOperador))
	status, _ := doRequest(t, app, "Bearer "+tokenDe(t, entity.RoleOperador))
	assert.Equal(t, fiber.StatusOK, status)
}