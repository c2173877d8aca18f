package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicose-chatbot-backend/models"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, identity *models.Identity, secret []byte, exp time.Time) string {
	t.Helper()
	token, err := SignToken(identity, secret, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	require.NoError(t, err)
	return token
}

func whoAmIRouter() *gin.Engine {
	r := gin.New()
	r.Use(Authenticate(string(testSecret)))
	r.GET("/me", func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": identity.UserID, "role": identity.Role})
	})
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	router := whoAmIRouter()
	user := &models.Identity{UserID: "u1", Email: "u1@example.com", Role: models.RoleDoctor}
	valid := signed(t, user, testSecret, time.Now().Add(time.Hour))

	tests := []struct {
		name    string
		header  string
		query   string
		wantRaw string
	}{
		{"bearer header", "Bearer " + valid, "", `{"id":"u1","role":"Doctor"}`},
		{"query token", "", valid, `{"id":"u1","role":"Doctor"}`},
		{"no token", "", "", `{"anonymous":true}`},
		{"wrong secret", "Bearer " + signed(t, user, []byte("other"), time.Now().Add(time.Hour)), "", `{"anonymous":true}`},
		{"expired", "Bearer " + signed(t, user, testSecret, time.Now().Add(-time.Hour)), "", `{"anonymous":true}`},
		{"garbage", "Bearer not-a-jwt", "", `{"anonymous":true}`},
		{"basic scheme", "Basic abc", "", `{"anonymous":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/me"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.wantRaw, w.Body.String())
		})
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{ID: "u1"})
	raw, err := token.SignedString(testSecret)
	require.NoError(t, err)

	_, err = ParseToken(raw, testSecret)
	assert.Error(t, err)
}

func TestParseToken_RequiresIdentity(t *testing.T) {
	raw := signed(t, &models.Identity{Role: models.RoleAdmin}, testSecret, time.Now().Add(time.Hour))
	_, err := ParseToken(raw, testSecret)
	assert.Error(t, err)
}

func TestParseToken_NormalizesRole(t *testing.T) {
	raw := signed(t, &models.Identity{Email: "x@example.com", Role: "superuser"}, testSecret, time.Now().Add(time.Hour))
	identity, err := ParseToken(raw, testSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, identity.Role)
}

func TestRequireRole(t *testing.T) {
	router := whoAmIRouter()

	for role, want := range map[models.Role]int{models.RoleAdmin: http.StatusOK, models.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, &models.Identity{UserID: "u", Role: role}, testSecret, time.Now().Add(time.Hour)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
