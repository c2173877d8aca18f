package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicose-chatbot-backend/database"
	"medicose-chatbot-backend/middleware"
	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/services"
	"medicose-chatbot-backend/utils"
)

const testSecret = "controller-secret"

var (
	patient = &models.Identity{UserID: "u-1", Email: "pat@example.com", Name: "Pat", Role: models.RoleUser}
	admin   = &models.Identity{UserID: "a-1", Email: "admin@example.com", Role: models.RoleAdmin}
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()

	sessions, err := database.NewLRUSessionStore(16)
	require.NoError(t, err)
	analytics := database.NewMemoryAnalyticsStore()
	now := time.Date(2026, time.February, 5, 9, 15, 0, 0, time.UTC)

	chatbot := services.NewChatbotService(services.ChatbotOptions{
		Generator: services.NewResponseGenerator(database.NewMemoryOrderStore(), services.NoopCompleter{}),
		Flows:     services.NewFlowEngine(database.NewMemoryAppointmentStore(), utils.NewDateParser(time.UTC, func() time.Time { return now })),
		Ocr:       services.NewOcrService(database.NewMemoryPrescriptionStore()),
		Sessions:  sessions,
		Analytics: analytics,
		Summaries: analytics,
	})

	cc := NewChatbotController(chatbot)
	ws := NewWebSocketController(chatbot, []string{"*"})

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Authenticate(testSecret))
	api.POST("/chat", cc.HandleChat)
	api.POST("/chat/quick-action", cc.HandleQuickAction)
	api.POST("/chat/ocr", cc.HandleOcr)
	api.GET("/chat/session", cc.GetSession)
	api.DELETE("/chat/session", cc.ResetSession)
	api.GET("/chat/intents", cc.GetSupportedIntents)
	api.GET("/chat-analytics", middleware.RequireRole(models.RoleAdmin), cc.GetChatAnalytics)
	api.GET("/ws", ws.HandleWebSocket)
	return r
}

func tokenFor(t *testing.T, identity *models.Identity) string {
	t.Helper()
	token, err := middleware.SignToken(identity, []byte(testSecret), jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)
	return token
}

func do(t *testing.T, r *gin.Engine, method, path string, identity *models.Identity, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, identity))
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

func TestHandleChat_Unauthenticated(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/chat", nil, gin.H{"message": "show my prescriptions"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "For your privacy, chat is only available when you are signed in. Please log in to continue.", decode(t, w)["reply"])
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please type a question so I can help you.", decode(t, w)["reply"])

	w = do(t, r, http.MethodPost, "/api/v1/chat", patient, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_Answer(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "Show my prescriptions", "language": "en"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "prescription.view", body["intent"])
	assert.Equal(t, 1.0, body["confidence"])
	assert.Equal(t, "ok", body["status"])
	assert.True(t, strings.HasPrefix(body["reply"].(string), "Prescriptions & medications:"))
}

func TestHandleChat_BookingAcrossRequests(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "book appointment"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["flow_active"])

	w = do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "1"})
	assert.Contains(t, decode(t, w)["reply"], "For which date and time")

	w = do(t, r, http.MethodDelete, "/api/v1/chat/session", patient, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/chat/session", patient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["flow_active"])
	assert.NotEmpty(t, body["actions"])
}

func TestHandleQuickActionAndOcr(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/chat/quick-action", patient, gin.H{"action": "list-appointments"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "appointment.list", decode(t, w)["intent"])

	w = do(t, r, http.MethodPost, "/api/v1/chat/quick-action", patient, gin.H{"action": "teleport"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/chat/quick-action", patient, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/chat/ocr", patient, gin.H{"text": "Cetirizine 10mg tablet"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ocr_pending"])

	w = do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "ADD MEDICINES"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["reply"], "I created 1 draft prescription(s)")
}

func TestGetSupportedIntents(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/chat/intents", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	intents := body["intents"].([]interface{})
	assert.Len(t, intents, 11)
	assert.Equal(t, "symptom.navigation", intents[0].(map[string]interface{})["intent"])
	assert.NotEmpty(t, body["quick_actions"])
}

func TestGetChatAnalytics(t *testing.T) {
	r := testRouter(t)

	do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "I need a refill"})
	do(t, r, http.MethodPost, "/api/v1/chat", patient, gin.H{"message": "qwerty"})

	w := do(t, r, http.MethodGet, "/api/v1/chat-analytics", patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/chat-analytics", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.AnalyticsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Len(t, summary.MostCommonIntents, 2)
	assert.Equal(t, []models.IntentCount{{Intent: "unknown", Count: 1}}, summary.UnansweredIntents)
}

func TestWebSocketChat(t *testing.T) {
	server := httptest.NewServer(testRouter(t))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws?token=" + tokenFor(t, patient)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting models.ChatResponse
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.True(t, strings.HasPrefix(greeting.Reply, "Hi Pat!"))

	require.NoError(t, conn.WriteJSON(gin.H{"type": "quick_action", "action": "cancel"}))
	var resp models.ChatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, models.IntentAppointmentCancel, resp.Intent)
	assert.True(t, resp.FlowActive)

	require.NoError(t, conn.WriteJSON(gin.H{"message": "no"}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "Okay, I won't cancel your appointment.", resp.Reply)

	require.NoError(t, conn.WriteJSON(gin.H{"type": "bogus"}))
	var errFrame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, "error", errFrame["status"])
}

func TestWebSocketChat_Anonymous(t *testing.T) {
	server := httptest.NewServer(testRouter(t))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(gin.H{"message": "hello"}))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "For your privacy, chat is only available when you are signed in. Please log in to continue.", frame["reply"])
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) WriteJSON(v interface{}) error {
	w.writes++
	return errors.New("broken pipe")
}

func TestSendGreeting(t *testing.T) {
	sessions, err := database.NewLRUSessionStore(4)
	require.NoError(t, err)
	wc := NewWebSocketController(services.NewChatbotService(services.ChatbotOptions{Sessions: sessions}), nil)
	ctx := context.Background()

	broken := &failingWriter{}
	assert.False(t, wc.sendGreeting(ctx, broken, patient))
	assert.Equal(t, 1, broken.writes)

	anonymous := &failingWriter{}
	assert.True(t, wc.sendGreeting(ctx, anonymous, nil))
	assert.Zero(t, anonymous.writes)
}
