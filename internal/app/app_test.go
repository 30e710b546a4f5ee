package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escritos/internal/artifacts"
	"escritos/internal/docx"
	"escritos/internal/escritos"
	"escritos/internal/output"
	"escritos/internal/schema"
	"escritos/internal/testsupport"
	u "escritos/internal/utils"
)

func minimalConfig(t *testing.T) u.Config {
	t.Helper()
	cfg := u.DefaultConfig()
	cfg.Templates.Dir = t.TempDir()
	cfg.Output.Root = filepath.Join(t.TempDir(), "EscritosPJUD")
	testsupport.WriteTemplates(t, cfg.Templates.Dir, schema.Default())
	return cfg
}

func newTestApp(t *testing.T, cfg u.Config) *fiber.App {
	t.Helper()
	u.AppConfig = cfg

	gen := escritos.New(schema.Default(), docx.NewRenderer(cfg.Templates.Dir), output.NewWriter(cfg.Output.Root), artifacts.NewMemory(cfg.Artifacts.TTL))
	return SetupApp(cfg, gen)
}

func decodeError(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code, body.Error.Message
}

func TestSetupApp_RoutesAndJSON404(t *testing.T) {
	app := newTestApp(t, minimalConfig(t))

	for _, path := range []string{"/", "/v1/types", "/v1/monitor"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	code, msg := decodeError(t, resp)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "Not Found", msg)
}

func TestRegisterMiddleware_AddsHealthAndRequestID(t *testing.T) {
	app := newTestApp(t, minimalConfig(t))

	healthResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ops/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, healthResp.StatusCode)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/types", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestSetupApp_CreateUsesErrorEnvelope(t *testing.T) {
	app := newTestApp(t, minimalConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/escritos", strings.NewReader(`{"tipo":"Recurso","campos":{}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	code, msg := decodeError(t, resp)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Contains(t, msg, "unknown document type")
}

func TestSetupApp_EndToEndCreate(t *testing.T) {
	cfg := minimalConfig(t)
	app := newTestApp(t, cfg)

	body := `{"tipo":"Solicitud simple","campos":{"nombre":"Juan Pérez","ciudad":"Santiago","rit":"C-123-2024","materia":"Civil","tribunal":"1º Juzgado","descripcion":"Texto."}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/escritos", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Folder string `json:"folder"`
		PDF    struct {
			URL string `json:"url"`
		} `json:"pdf"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, filepath.Join(cfg.Output.Root, "C-123-2024"), out.Folder)

	dl, err := app.Test(httptest.NewRequest(http.MethodGet, out.PDF.URL, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, dl.StatusCode)
	assert.Equal(t, "application/pdf", dl.Header.Get("Content-Type"))
}

func TestKeyAuth_InvalidKey(t *testing.T) {
	u.LoadTokensFromMap(map[string]int{"despacho-token": 0})
	app := newTestApp(t, minimalConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/types", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/v1/types", nil)
	req.Header.Set("X-API-Key", "despacho-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNewRateLimitStore(t *testing.T) {
	var cfg u.Config
	if s := newRateLimitStore(cfg); s == nil {
		t.Fatalf("expected memory store when redis host empty")
	}

	cfg.Cache.RedisHost = "127.0.0.1:1"
	if s := newRateLimitStore(cfg); s == nil {
		t.Fatalf("expected fallback store when redis is down")
	}

	mrs := miniredis.RunT(t)
	cfg.Cache.RedisHost = mrs.Addr()
	s := newRateLimitStore(cfg)
	require.NoError(t, s.Set("k", []byte("v"), time.Minute))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
	assert.True(t, mrs.Exists("k"))
}
