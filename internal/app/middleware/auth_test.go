package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutuelle/internal/app/config"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/role"
)

type fakeBlacklist struct {
	tokens map[string]bool
	err    error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jwtStr string) (bool, error) {
	return f.tokens[jwtStr], f.err
}

var testConfig = &config.Config{
	JWT: config.JWTConfig{Token: "test-secret", ExpiresIn: time.Hour, SigningMethod: jwt.SigningMethodHS256},
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, userID uint, r role.Role, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, ds.JWTClaims{
		StandardClaims: jwt.StandardClaims{ExpiresAt: expiresAt.Unix()},
		UserID:         userID,
		Role:           r,
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newRouter(bl Blacklist, roles ...role.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	am := NewAuthMiddleware(bl, testConfig)
	r.GET("/me", am.WithAuthCheck(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":   c.GetUint(ContextUserID),
			"role": c.MustGet(ContextUserRole).(role.Role).String(),
		})
	})
	return r
}

func call(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWithAuthCheck(t *testing.T) {
	secret := []byte(testConfig.JWT.Token)
	valid := signToken(t, jwt.SigningMethodHS256, secret, 42, role.Customer, time.Now().Add(time.Hour))
	revoked := signToken(t, jwt.SigningMethodHS256, secret, 43, role.Customer, time.Now().Add(time.Hour))
	bl := &fakeBlacklist{tokens: map[string]bool{revoked: true}}

	tests := []struct {
		name   string
		token  string
		roles  []role.Role
		bl     Blacklist
		status int
	}{
		{name: "valid", token: valid, bl: bl, status: http.StatusOK},
		{name: "missing header", bl: bl, status: http.StatusUnauthorized},
		{name: "revoked", token: revoked, bl: bl, status: http.StatusUnauthorized},
		{name: "blacklist unavailable", token: valid, bl: &fakeBlacklist{err: errors.New("redis down")}, status: http.StatusUnauthorized},
		{name: "wrong secret", token: signToken(t, jwt.SigningMethodHS256, []byte("other"), 42, role.Customer, time.Now().Add(time.Hour)), bl: bl, status: http.StatusUnauthorized},
		{name: "expired", token: signToken(t, jwt.SigningMethodHS256, secret, 42, role.Customer, time.Now().Add(-time.Minute)), bl: bl, status: http.StatusUnauthorized},
		{name: "role denied", token: valid, roles: []role.Role{role.Admin}, bl: bl, status: http.StatusForbidden},
		{name: "role allowed", token: valid, roles: []role.Role{role.Customer, role.Broker}, bl: bl, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(newRouter(tt.bl, tt.roles...), tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":42,"role":"customer"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"status":"fail"`)
			}
		})
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	am := NewAuthMiddleware(&fakeBlacklist{}, testConfig)
	token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, 1, role.Admin, time.Now().Add(time.Hour))

	_, err := am.ParseToken(token)
	assert.Error(t, err)
}
