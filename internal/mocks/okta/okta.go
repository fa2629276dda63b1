// Package okta mocks the Okta OAuth 2.0 endpoints used by the Okta React SDK.
// There is no authorization code store: the code itself carries the username
// as its third "_" separated field.
package okta

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/service"
)

const (
	keyID    = "default"
	audience = "api://default"

	accessTokenTTL  = time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

var defaultGroups = []string{"Everyone", "carehub-project-admin1"}

// ErrInvalidCode is returned for codes that do not carry a username
var ErrInvalidCode = errors.New("authorization code does not carry a username")

// Service is the OAuth mock
type Service struct {
	key    *rsa.PrivateKey
	logger *zap.Logger
	now    func() time.Time
}

// New creates the OAuth mock signing with key
func New(key *rsa.PrivateKey, logger *zap.Logger) *Service {
	return &Service{
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

// Describe implements service.Describer
func (s *Service) Describe() service.Metadata {
	return service.Metadata{
		Name:             "Okta OAuth",
		Description:      "Mocks OAuth 2.0 flow supporting @okta/react SDK",
		DefaultVariantID: "auth_success",
		Variants: []models.VariantMeta{
			{ID: "auth_success", Name: "success"},
			{ID: "auth_error", Name: "error"},
			{ID: "auth_error_user_not_assigned", Name: "user not assigned"},
		},
	}
}

// Register implements service.CodeService
func (s *Service) Register(group *gin.RouterGroup) {
	base := group.BasePath()

	group.GET("/.well-known/openid-configuration", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.discovery(issuer(c, base)))
	})
	group.GET("/oauth2/v1/keys", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.JWKS())
	})
	group.POST("/oauth2/v1/token", func(c *gin.Context) {
		s.handleToken(c, issuer(c, base))
	})
	group.POST("/oauth2/v1/introspect", func(c *gin.Context) {
		s.handleIntrospect(c, issuer(c, base))
	})
}

// issuer is the absolute URL of the mount point as seen by the caller
func issuer(c *gin.Context, base string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, base)
}

func (s *Service) discovery(iss string) gin.H {
	return gin.H{
		"issuer":                 iss,
		"authorization_endpoint": iss + "/oauth2/v1/authorize",
		"token_endpoint":         iss + "/oauth2/v1/token",
		"introspection_endpoint": iss + "/oauth2/v1/introspect",
		"jwks_uri":               iss + "/oauth2/v1/keys",
		"response_types_supported": []string{
			"code", "token", "id_token",
			"code id_token", "code token", "id_token token", "code id_token token",
		},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{jwt.SigningMethodRS256.Alg()},
		"grant_types_supported":                 []string{"authorization_code", "implicit", "refresh_token"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
	}
}

// JWKS returns the public half of the signing key as a key set
func (s *Service) JWKS() gin.H {
	pub := s.key.PublicKey
	return gin.H{
		"keys": []gin.H{{
			"kty": "RSA",
			"use": "sig",
			"kid": keyID,
			"alg": jwt.SigningMethodRS256.Alg(),
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
}

type tokenRequest struct {
	Code     string `json:"code" form:"code"`
	ClientID string `json:"client_id" form:"client_id"`
}

// TokenResponse is the token endpoint reply
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

// UsernameFromCode extracts the username carried by an authorization code
func UsernameFromCode(code string) (string, error) {
	parts := strings.Split(code, "_")
	if len(parts) < 3 || parts[2] == "" {
		return "", ErrInvalidCode
	}
	return parts[2], nil
}

func (s *Service) handleToken(c *gin.Context, iss string) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	username, err := UsernameFromCode(req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_grant", "error_description": err.Error()})
		return
	}

	resp, err := s.IssueTokens(iss, username, req.ClientID)
	if err != nil {
		s.logger.Error("failed to sign tokens", zap.String("user", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// IssueTokens signs the access, ID and refresh tokens for a user
func (s *Service) IssueTokens(iss, username, clientID string) (*TokenResponse, error) {
	now := s.now()

	profile := func(aud string, ttl time.Duration) jwt.MapClaims {
		return jwt.MapClaims{
			"sub":                username,
			"name":               "Mock User " + username,
			"email":              username + "@mock.user",
			"email_address":      username + "@mock.user",
			"preferred_username": username,
			"groups":             defaultGroups,
			"iss":                iss,
			"aud":                aud,
			"iat":                now.Unix(),
			"exp":                now.Add(ttl).Unix(),
		}
	}

	access, err := s.sign(profile(audience, accessTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	id, err := s.sign(profile(clientID, accessTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("id token: %w", err)
	}
	refresh, err := s.sign(jwt.MapClaims{
		"sub":        username,
		"token_type": "refresh",
		"iss":        iss,
		"aud":        clientID,
		"iat":        now.Unix(),
		"exp":        now.Add(refreshTokenTTL).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	return &TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(accessTokenTTL.Seconds()),
		IDToken:      id,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(s.key)
}

type introspectRequest struct {
	Token string `json:"token" form:"token"`
}

// handleIntrospect answers {active:false} for anything it cannot verify
func (s *Service) handleIntrospect(c *gin.Context, iss string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("introspection panicked", zap.Any("panic", r))
			c.JSON(http.StatusOK, gin.H{"active": false})
		}
	}()

	var req introspectRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Debug("unreadable introspection request", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"active": false, "error": "token is required"})
		return
	}

	claims, err := s.Verify(req.Token, iss)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	resp := gin.H{}
	for k, v := range claims {
		resp[k] = v
	}
	resp["active"] = true
	c.JSON(http.StatusOK, resp)
}

// Verify checks a token's signature, expiry and issuer
func (s *Service) Verify(tokenString, iss string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return &s.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(iss),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims format")
	}
	return claims, nil
}
