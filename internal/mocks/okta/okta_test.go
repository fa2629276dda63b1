package okta

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testIssuer = "http://example.com/api/mocks/okta"

func newTestService(t *testing.T) (*Service, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := New(key, zap.NewNop())
	r := gin.New()
	s.Register(r.Group("/api/mocks/okta"))
	return s, r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Host = "example.com"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestDescribe(t *testing.T) {
	s, _ := newTestService(t)
	meta := s.Describe()

	assert.Equal(t, "Okta OAuth", meta.Name)
	assert.Equal(t, "auth_success", meta.DefaultVariantID)
	require.Len(t, meta.Variants, 3)
	assert.Equal(t, "auth_error_user_not_assigned", meta.Variants[2].ID)
}

func TestDiscovery(t *testing.T) {
	_, r := newTestService(t)

	w := doJSON(r, http.MethodGet, "/api/mocks/okta/.well-known/openid-configuration", "")
	require.Equal(t, http.StatusOK, w.Code)

	doc := decode(t, w)
	assert.Equal(t, testIssuer, doc["issuer"])
	assert.Equal(t, testIssuer+"/oauth2/v1/token", doc["token_endpoint"])
	assert.Equal(t, testIssuer+"/oauth2/v1/keys", doc["jwks_uri"])
	assert.Equal(t, []interface{}{"RS256"}, doc["id_token_signing_alg_values_supported"])
}

func TestDiscovery_ForwardedProto(t *testing.T) {
	_, r := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/mocks/okta/.well-known/openid-configuration", nil)
	req.Host = "mocks.dev"
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://mocks.dev/api/mocks/okta", decode(t, w)["issuer"])
}

func TestJWKS(t *testing.T) {
	s, r := newTestService(t)

	w := doJSON(r, http.MethodGet, "/api/mocks/okta/oauth2/v1/keys", "")
	require.Equal(t, http.StatusOK, w.Code)

	var set struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	k := set.Keys[0]
	assert.Equal(t, "RSA", k["kty"])
	assert.Equal(t, "default", k["kid"])
	assert.Equal(t, "sig", k["use"])
	assert.Equal(t, "RS256", k["alg"])
	assert.Equal(t, "AQAB", k["e"])
	assert.NotEmpty(t, k["n"])
	assert.Equal(t, s.key.PublicKey.N.BitLen(), 2048)
}

func TestToken(t *testing.T) {
	s, r := newTestService(t)

	w := doJSON(r, http.MethodPost, "/api/mocks/okta/oauth2/v1/token", `{"code": "mock_code_alice_123", "client_id": "web-app"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)

	access, err := s.Verify(resp.AccessToken, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "alice", access["sub"])
	assert.Equal(t, "Mock User alice", access["name"])
	assert.Equal(t, "alice@mock.user", access["email"])
	assert.Equal(t, "alice@mock.user", access["email_address"])
	assert.Equal(t, "alice", access["preferred_username"])
	assert.Equal(t, []interface{}{"Everyone", "carehub-project-admin1"}, access["groups"])
	assert.Equal(t, "api://default", access["aud"])

	id, err := s.Verify(resp.IDToken, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "web-app", id["aud"])

	refresh, err := s.Verify(resp.RefreshToken, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refresh["token_type"])
	iat := int64(refresh["iat"].(float64))
	exp := int64(refresh["exp"].(float64))
	assert.Equal(t, int64(30*24*3600), exp-iat)

	// Header carries the key id
	parsed, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "default", parsed.Header["kid"])
}

func TestToken_FormEncoded(t *testing.T) {
	s, r := newTestService(t)

	form := url.Values{"code": {"a_b_bob"}, "client_id": {"cli"}}
	req := httptest.NewRequest(http.MethodPost, "/api/mocks/okta/oauth2/v1/token", strings.NewReader(form.Encode()))
	req.Host = "example.com"
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := s.Verify(resp.IDToken, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims["sub"])
}

func TestToken_InvalidCode(t *testing.T) {
	_, r := newTestService(t)

	for _, code := range []string{"", "nounderscore", "only_two", "a_b_"} {
		w := doJSON(r, http.MethodPost, "/api/mocks/okta/oauth2/v1/token", `{"code": "`+code+`", "client_id": "web"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, code)
		assert.Equal(t, "invalid_grant", decode(t, w)["error"], code)
	}
}

func TestUsernameFromCode(t *testing.T) {
	u, err := UsernameFromCode("x_y_carol_extra")
	require.NoError(t, err)
	assert.Equal(t, "carol", u)

	_, err = UsernameFromCode("x_y")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestIntrospect(t *testing.T) {
	s, r := newTestService(t)

	tokens, err := s.IssueTokens(testIssuer, "dave", "web")
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, "/api/mocks/okta/oauth2/v1/introspect", `{"token": "`+tokens.AccessToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "dave", body["sub"])
	assert.Equal(t, testIssuer, body["iss"])
}

func TestIntrospect_Failures(t *testing.T) {
	s, r := newTestService(t)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	foreign, err := New(other, zap.NewNop()).IssueTokens(testIssuer, "eve", "web")
	require.NoError(t, err)

	wrongIssuer, err := s.IssueTokens("http://elsewhere/okta", "eve", "web")
	require.NoError(t, err)

	expiredSvc := New(s.key, zap.NewNop())
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.IssueTokens(testIssuer, "eve", "web")
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "eve", "iss": testIssuer})
	hsToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.jwt",
		"foreign key":  foreign.AccessToken,
		"wrong issuer": wrongIssuer.AccessToken,
		"expired":      expired.AccessToken,
		"hmac":         hsToken,
	} {
		t.Run(name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/mocks/okta/oauth2/v1/introspect", `{"token": "`+token+`"}`)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, map[string]interface{}{"active": false}, decode(t, w))
		})
	}
}

func TestIntrospect_MissingToken(t *testing.T) {
	_, r := newTestService(t)

	for _, body := range []string{`{}`, ``, `{"token": ""}`} {
		w := doJSON(r, http.MethodPost, "/api/mocks/okta/oauth2/v1/introspect", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, map[string]interface{}{"active": false, "error": "token is required"}, decode(t, w))
	}
}

func TestIntrospect_UnreadableBody(t *testing.T) {
	_, r := newTestService(t)

	for _, body := range []string{`{"token": 5}`, `{broken`, `[]`} {
		w := doJSON(r, http.MethodPost, "/api/mocks/okta/oauth2/v1/introspect", body)
		assert.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, map[string]interface{}{"active": false}, decode(t, w), body)
	}
}
