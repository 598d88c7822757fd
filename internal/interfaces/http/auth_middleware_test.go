package http_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stocklink-api/internal/application/dto"
	apphttp "github.com/jhoicas/stocklink-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/stocklink-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testIssuer    = "stocklink-test"
	testExpMin    = 60
)

// tokenForRole genera el header Authorization con un JWT del rol indicado.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, role, testIssuer, testExpMin)
	require.NoError(t, err, "debe generarse un token JWT válido")
	return "Bearer " + tok
}

// ──────────────────────────────────────────────────────────────────────────────
// Matriz de roles sobre las rutas del ledger
// ──────────────────────────────────────────────────────────────────────────────

func TestRoles_RutasProtegidasDelLedger(t *testing.T) {
	app := newServer(t, map[int64]int64{1: 10})

	const (
		create    = "POST /api/movements"
		reconcile = "GET /api/products/1/reconciliation"
		journal   = "GET /api/movements/journal.pdf"
	)
	routes := map[string]struct{ method, path, body string }{
		create:    {http.MethodPost, "/api/movements", movementBody("IN", 1, 1)},
		reconcile: {http.MethodGet, "/api/products/1/reconciliation", ""},
		journal:   {http.MethodGet, "/api/movements/journal.pdf", ""},
	}

	cases := []struct {
		route string
		role  string
		want  int
	}{
		{create, apphttp.RoleAdmin, http.StatusCreated},
		{create, apphttp.RoleBodeguero, http.StatusCreated},
		{create, apphttp.RoleUser, http.StatusCreated},
		{create, apphttp.RoleAuditor, http.StatusForbidden},
		{create, "vendedor", http.StatusForbidden},

		{reconcile, apphttp.RoleAdmin, http.StatusOK},
		{reconcile, apphttp.RoleAuditor, http.StatusOK},
		{reconcile, apphttp.RoleBodeguero, http.StatusForbidden},
		{reconcile, apphttp.RoleUser, http.StatusForbidden},

		{journal, apphttp.RoleAdmin, http.StatusOK},
		{journal, apphttp.RoleAuditor, http.StatusOK},
		{journal, apphttp.RoleBodeguero, http.StatusForbidden},
		{journal, apphttp.RoleUser, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.route+" como "+tc.role, func(t *testing.T) {
			r := routes[tc.route]
			resp := call(t, app, r.method, r.path, tokenForRole(t, tc.role), r.body)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
			if tc.want == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", decode[dto.ErrorResponse](t, resp).Code)
			}
		})
	}

	// Solo los tres POST permitidos llegaron al log (más el saldo inicial)
	list := decode[[]dto.MovementResponse](t, call(t, app, http.MethodGet, "/api/movements", "", ""))
	assert.Len(t, list, 4)
}

func TestRoles_TokenSinRol_Retorna401(t *testing.T) {
	app := newServer(t, map[int64]int64{1: 0})

	resp := call(t, app, http.MethodPost, "/api/movements", tokenForRole(t, ""), movementBody("IN", 1, 1))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_ROLE", decode[dto.ErrorResponse](t, resp).Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware: tokens rechazados no tocan el ledger
// ──────────────────────────────────────────────────────────────────────────────

func TestAuth_TokenRechazadoNoRegistraMovimiento(t *testing.T) {
	app := newServer(t, map[int64]int64{1: 0})

	otherSecret, err := pkgjwt.Generate("otro-secret-completamente-distinto", testUserID, apphttp.RoleAdmin, testIssuer, testExpMin)
	require.NoError(t, err)
	expired, err := pkgjwt.Generate(testJWTSecret, testUserID, apphttp.RoleAdmin, testIssuer, -1)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin header", "", "MISSING_TOKEN"},
		{"esquema Basic", "Basic dXNlcjpwYXNz", "INVALID_TOKEN"},
		{"token malformado", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
		{"firmado con otro secret", "Bearer " + otherSecret, "INVALID_TOKEN"},
		{"expirado", "Bearer " + expired, "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := call(t, app, http.MethodPost, "/api/movements", tc.header, movementBody("IN", 5, 1))
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, decode[dto.ErrorResponse](t, resp).Code)
		})
	}

	stock := decode[dto.StockResponse](t, call(t, app, http.MethodGet, "/api/products/1/stock", "", ""))
	assert.Zero(t, stock.Quantity, "ninguna petición rechazada debe aplicar el movimiento")
}

func TestAuth_LecturasPublicasIgnoranToken(t *testing.T) {
	app := newServer(t, map[int64]int64{1: 3})

	for _, path := range []string{"/api/movements", "/api/stock", "/api/products/1/stock", "/api/products/1/movements"} {
		resp := call(t, app, http.MethodGet, path, "Bearer token.invalido.aqui", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}
