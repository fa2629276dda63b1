package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prasenjit/go-modulus/internal/models"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

const paymentsIndex = `{
	"name": "payments",
	"desc": "Card payments",
	"defaultResponse": "success",
	"method": "post",
	"path": "/charge/{accountId}",
	"uniqueKey": {"target": "query", "modifier": "accountId", "type": "account"}
}`

type fakeCode struct {
	meta *Metadata
}

func (f *fakeCode) Register(group *gin.RouterGroup) {
	group.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

type describedCode struct {
	fakeCode
}

func (d *describedCode) Describe() Metadata {
	return *d.meta
}

func newTestLoader(catalog *Catalog) *Loader {
	return NewLoader(catalog, "/api/mocks/", zap.NewNop())
}

func TestLoad_MissingRoot(t *testing.T) {
	reg, err := newTestLoader(nil).Load("/does/not/exist")
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Errors())
}

func TestLoad_ConfigService(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"payments/index.json":    paymentsIndex,
		"payments/success.json":  `{"status": 200, "body": {"ok": true}}`,
		"payments/declined.json": `{"name": "Card declined", "status": "402", "body": {"ok": false}}`,
		"payments/notes.txt":     "ignored",
	})

	reg, err := newTestLoader(nil).Load(root)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	e, ok := reg.Get("payments")
	require.True(t, ok)
	d := e.Descriptor
	assert.Equal(t, "payments", d.Name)
	assert.Equal(t, "Card payments", d.Description)
	assert.Equal(t, models.KindConfig, d.Kind)
	assert.Equal(t, http.MethodPost, d.Method)
	assert.Equal(t, "/charge/{accountId}", d.Path)
	assert.Equal(t, "/api/mocks/payments", d.MountPath)
	assert.Equal(t, "success", d.DefaultVariantID)
	assert.Equal(t, []models.VariantMeta{
		{ID: "declined", Name: "Card declined"},
		{ID: "success", Name: "success"},
	}, d.Variants)
	require.NotNil(t, d.UniqueKey)
	assert.Equal(t, "account", d.UniqueKey.Type)
	assert.Nil(t, e.Proxy)
	assert.Equal(t, filepath.Join(root, "payments", "declined.json"), e.PayloadPath("declined"))
}

func TestLoad_OneDescriptorPerDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b-svc/index.json":   `{"defaultResponse": "ok", "method": "GET", "path": "/b"}`,
		"b-svc/ok.json":      `{"status": 200, "body": "b"}`,
		"a-svc/index.json":   `{"defaultResponse": "ok", "method": "GET", "path": "/a"}`,
		"a-svc/ok.json":      `{"status": 200, "body": "a"}`,
		"empty/readme.md":    "nothing here",
		"stray-file.json":    `{}`,
	})

	reg, err := newTestLoader(nil).Load(root)
	require.NoError(t, err)

	entries := reg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a-svc", entries[0].Descriptor.Name)
	assert.Equal(t, "b-svc", entries[1].Descriptor.Name)

	for _, e := range entries {
		assert.True(t, e.Descriptor.HasVariant(e.Descriptor.DefaultVariantID))
	}

	errs := reg.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "empty", errs[0].Dir)
	assert.Equal(t, KindWarning, errs[0].Kind)
}

func TestLoad_ConfigErrorsAreIsolated(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"good/index.json":             `{"defaultResponse": "ok", "method": "GET", "path": "/"}`,
		"good/ok.json":                `{"status": 200, "body": {}}`,
		"bad-json/index.json":         `{not json`,
		"no-default/index.json":       `{"method": "GET", "path": "/"}`,
		"no-default/ok.json":          `{"status": 200}`,
		"missing-payload/index.json":  `{"defaultResponse": "gone", "method": "GET", "path": "/"}`,
		"missing-payload/ok.json":     `{"status": 200}`,
		"bad-method/index.json":       `{"defaultResponse": "ok", "method": "TRACE", "path": "/"}`,
		"bad-method/ok.json":          `{"status": 200}`,
		"bad-path/index.json":         `{"defaultResponse": "ok", "method": "GET", "path": "relative"}`,
		"bad-path/ok.json":            `{"status": 200}`,
		"bad-key/index.json":          `{"defaultResponse": "ok", "method": "GET", "path": "/", "uniqueKey": {"target": "cookie", "modifier": "x"}}`,
		"bad-key/ok.json":             `{"status": 200}`,
		"bad-variant/index.json":      `{"defaultResponse": "ok", "method": "GET", "path": "/"}`,
		"bad-variant/ok.json":         `{"status": 200}`,
		"bad-variant/broken.json":     `{"status": "abc"}`,
		"bad-status/index.json":       `{"defaultResponse": "ok", "method": "GET", "path": "/"}`,
		"bad-status/ok.json":          `{"status": 1200}`,
	})

	reg, err := newTestLoader(nil).Load(root)
	require.NoError(t, err)

	require.Equal(t, 1, reg.Len())
	_, ok := reg.Get("good")
	assert.True(t, ok)

	errs := reg.Errors()
	require.Len(t, errs, 8)
	for _, e := range errs {
		assert.Equal(t, KindConfig, e.Kind, e.Dir)
		assert.True(t, errors.Is(e, ErrConfig), e.Dir)
	}
}

func TestLoad_ProxyVariant(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"sim/index.json": `{"defaultResponse": "proxy", "method": "GET", "path": "/status"}`,
		"sim/ok.json":    `{"status": 200}`,
		"sim/proxy.yaml": "handler: sim-status\n",
	})

	catalog := NewCatalog()
	catalog.RegisterProxy("sim-status", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	reg, err := newTestLoader(catalog).Load(root)
	require.NoError(t, err)

	e, ok := reg.Get("sim")
	require.True(t, ok)
	assert.NotNil(t, e.Proxy)
	assert.Equal(t, models.VariantMeta{ID: "proxy", Name: "Proxy Pass"}, e.Descriptor.Variants[len(e.Descriptor.Variants)-1])
	assert.Equal(t, models.ProxyVariantID, e.Descriptor.DefaultVariantID)
}

func TestLoad_ProxyConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		proxy string
	}{
		{"unknown handler", "handler: nope\n"},
		{"both set", "handler: sim-status\ntarget: http://localhost:1\n"},
		{"neither set", "{}\n"},
		{"relative target", "target: /upstream\n"},
		{"malformed", "handler: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, map[string]string{
				"sim/index.json": `{"defaultResponse": "ok", "method": "GET", "path": "/"}`,
				"sim/ok.json":    `{"status": 200}`,
				"sim/proxy.yaml": tt.proxy,
			})
			catalog := NewCatalog()
			catalog.RegisterProxy("sim-status", func(c *gin.Context) {})

			reg, err := newTestLoader(catalog).Load(root)
			require.NoError(t, err)
			assert.Equal(t, 0, reg.Len())
			require.Len(t, reg.Errors(), 1)
			assert.ErrorIs(t, reg.Errors()[0], ErrConfig)
		})
	}
}

func TestLoad_ProxyTarget(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"users/index.json": `{"defaultResponse": "proxy", "method": "GET", "path": "/users/:id"}`,
		"users/proxy.yaml": "target: " + upstream.URL + "/v2\n",
	})

	reg, err := newTestLoader(nil).Load(root)
	require.NoError(t, err)
	e, ok := reg.Get("users")
	require.True(t, ok)

	r := gin.New()
	r.GET("/api/mocks/users/users/:id", e.Proxy)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/mocks/users/users/7", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/v2/users/7", gotPath)
}

func TestLoad_CodeService(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"okta/index.yaml":  "handler: okta\ndesc: Overridden description\n",
		"plain/index.yaml": "handler: plain\n",
	})

	catalog := NewCatalog()
	catalog.RegisterService("okta", &describedCode{fakeCode{meta: &Metadata{
		Name:             "Okta OAuth",
		Description:      "Built in",
		DefaultVariantID: "auth_success",
		Variants:         []models.VariantMeta{{ID: "auth_success", Name: "Success"}, {ID: "auth_error", Name: "Error"}},
	}}})
	catalog.RegisterService("plain", &fakeCode{})

	reg, err := newTestLoader(catalog).Load(root)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	e, ok := reg.Get("okta")
	require.True(t, ok)
	assert.Equal(t, models.KindCode, e.Descriptor.Kind)
	assert.Equal(t, "Okta OAuth", e.Descriptor.Name)
	assert.Equal(t, "Overridden description", e.Descriptor.Description)
	assert.Equal(t, "auth_success", e.Descriptor.DefaultVariantID)
	assert.Len(t, e.Descriptor.Variants, 2)
	assert.NotNil(t, e.Code)

	// Lookup by descriptor name also works
	_, ok = reg.Get("Okta OAuth")
	assert.True(t, ok)

	plain, ok := reg.Get("plain")
	require.True(t, ok)
	assert.Equal(t, "plain", plain.Descriptor.Name)
	assert.Empty(t, plain.Descriptor.Variants)
}

func TestLoad_CodeServiceProblems(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"unknown/index.yaml":     "handler: nope\n",
		"no-handler/index.yaml":  "name: x\n",
		"malformed/index.yaml":   "handler: [\n",
		"bad-default/index.yaml": "handler: plain\ndefaultResponse: missing\nresponses:\n  - id: ok\n    name: OK\n",
	})

	catalog := NewCatalog()
	catalog.RegisterService("plain", &fakeCode{})
	catalog.RegisterService("nil", nil)

	reg, err := newTestLoader(catalog).Load(root)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())

	kinds := map[string]string{}
	for _, e := range reg.Errors() {
		kinds[e.Dir] = e.Kind
	}
	assert.Equal(t, map[string]string{
		"unknown":     KindWarning,
		"no-handler":  KindWarning,
		"malformed":   KindWarning,
		"bad-default": KindConfig,
	}, kinds)
}

func TestLoad_CodeEntryTakesPrecedence(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"both/index.yaml": "handler: plain\n",
		"both/index.json": `{"defaultResponse": "ok", "method": "GET", "path": "/"}`,
	})
	catalog := NewCatalog()
	catalog.RegisterService("plain", &fakeCode{})

	reg, err := newTestLoader(catalog).Load(root)
	require.NoError(t, err)
	e, ok := reg.Get("both")
	require.True(t, ok)
	assert.Equal(t, models.KindCode, e.Descriptor.Kind)
}

func TestEntryMount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	config := &Entry{Descriptor: models.ServiceDescriptor{Method: "GET", Path: "/users/{userId}", MountPath: "/m/users"}}
	require.NoError(t, config.Mount(r.Group("/m/users"), func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("userId"))
	}))

	code := &Entry{Descriptor: models.ServiceDescriptor{MountPath: "/m/code"}, Code: &fakeCode{}}
	require.NoError(t, code.Mount(r.Group("/m/code"), nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/m/users/users/42", nil))
	assert.Equal(t, "42", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/m/code/ping", nil))
	assert.Equal(t, "pong", w.Body.String())

	// Conflicting wildcard names make gin panic; Mount reports it instead
	clash := &Entry{Descriptor: models.ServiceDescriptor{Method: "GET", Path: "/users/{id}", MountPath: "/m/users"}}
	assert.Error(t, clash.Mount(r.Group("/m/users"), func(c *gin.Context) {}))
}

func TestGinPath(t *testing.T) {
	assert.Equal(t, "/users/:userId/tx/:txId", GinPath("/users/{userId}/tx/{txId}"))
	assert.Equal(t, "/users/:id", GinPath("/users/:id"))
	assert.Equal(t, "/", GinPath("/"))
}

func TestCatalogNames(t *testing.T) {
	c := NewCatalog()
	c.RegisterService("b", &fakeCode{})
	c.RegisterService("a", &fakeCode{})
	c.RegisterProxy("p", func(*gin.Context) {})

	services, proxies := c.Names()
	assert.Equal(t, []string{"a", "b"}, services)
	assert.Equal(t, []string{"p"}, proxies)
}
