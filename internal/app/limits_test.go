package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "escritos/internal/utils"
)

const (
	browserAccept = "text/html,application/xhtml+xml,*/*;q=0.8"
	despachoToken = "despacho-token"
)

type call struct {
	method string
	path   string
	accept string
	key    string
	form   url.Values
}

func (cl call) do(t *testing.T, app *fiber.App) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if cl.form != nil {
		body = strings.NewReader(cl.form.Encode())
	}
	method := cl.method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, cl.path, body)
	req.Header.Set("User-Agent", "test-agent")
	if cl.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cl.accept != "" {
		req.Header.Set("Accept", cl.accept)
	}
	if cl.key != "" {
		req.Header.Set("X-API-Key", cl.key)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func assertErrorPage(t *testing.T, resp *http.Response, page string, status int) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, page, "Error al generar el escrito:")
}

func assertEnvelope(t *testing.T, resp *http.Response, body string, status int) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	assert.Contains(t, body, `"code":`+strconv.Itoa(status))
}

func TestTokenRateLimit(t *testing.T) {
	u.LoadTokensFromMap(map[string]int{despachoToken: 2})
	cfg := minimalConfig(t)
	cfg.RateLimiter.Interval = time.Hour
	app := newTestApp(t, cfg)

	api := call{path: "/v1/types", key: despachoToken}
	for i := 0; i < 2; i++ {
		resp, _ := api.do(t, app)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp, body := api.do(t, app)
	assertEnvelope(t, resp, body, fiber.StatusTooManyRequests)

	// Same token from a browser on the form still counts against its limit.
	resp, page := call{path: "/", key: despachoToken, accept: browserAccept}.do(t, app)
	assertErrorPage(t, resp, page, fiber.StatusTooManyRequests)
}

func TestClientRateLimit_FormGetsErrorPage(t *testing.T) {
	u.LoadTokensFromMap(map[string]int{despachoToken: 100})
	cfg := minimalConfig(t)
	cfg.RateLimiter.UserLimit = 2
	cfg.RateLimiter.Interval = time.Hour
	app := newTestApp(t, cfg)

	form := call{path: "/", accept: browserAccept}
	for i := 0; i < 2; i++ {
		resp, _ := form.do(t, app)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp, page := form.do(t, app)
	assertErrorPage(t, resp, page, fiber.StatusTooManyRequests)
	assert.Contains(t, page, "Too Many Requests")

	submit := call{method: http.MethodPost, path: "/escritos", accept: browserAccept, form: url.Values{"tipo": {"Oficio"}}}
	resp, page = submit.do(t, app)
	assertErrorPage(t, resp, page, fiber.StatusTooManyRequests)

	// The API keeps its envelope even when a browser asks.
	resp, body := call{path: "/v1/types", accept: browserAccept}.do(t, app)
	assertEnvelope(t, resp, body, fiber.StatusTooManyRequests)

	// A valid token bypasses the anonymous limiter.
	resp, _ = call{path: "/", accept: browserAccept, key: despachoToken}.do(t, app)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestKeyAuth_Negotiates(t *testing.T) {
	u.LoadTokensFromMap(map[string]int{despachoToken: 0})
	app := newTestApp(t, minimalConfig(t))

	resp, page := call{path: "/", accept: browserAccept, key: "wrong"}.do(t, app)
	assertErrorPage(t, resp, page, fiber.StatusUnauthorized)
	assert.Contains(t, page, u.ErrInvalidAPIKey.Error())

	resp, body := call{path: "/v1/types", accept: browserAccept, key: "wrong"}.do(t, app)
	assertEnvelope(t, resp, body, fiber.StatusUnauthorized)
}

func TestFormSubmit_UnknownTypeGetsPage(t *testing.T) {
	app := newTestApp(t, minimalConfig(t))

	resp, page := call{
		method: http.MethodPost,
		path:   "/escritos",
		accept: browserAccept,
		form:   url.Values{"tipo": {"Nope"}, "nombre": {"Ana"}},
	}.do(t, app)
	assertErrorPage(t, resp, page, fiber.StatusNotFound)
	assert.Contains(t, page, "unknown document type: &quot;Nope&quot;")
	assert.Contains(t, page, "Datos del escrito")
}

func TestUnknownRoute_Negotiates(t *testing.T) {
	app := newTestApp(t, minimalConfig(t))

	resp, page := call{path: "/no-existe", accept: browserAccept}.do(t, app)
	assertErrorPage(t, resp, page, fiber.StatusNotFound)

	resp, body := call{path: "/no-existe"}.do(t, app)
	assertEnvelope(t, resp, body, fiber.StatusNotFound)
}
