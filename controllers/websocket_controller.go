package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/middleware"
	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const wsReadTimeout = 10 * time.Minute

// wsMessage is one client frame. Type defaults to "message".
type wsMessage struct {
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Language models.Language    `json:"language"`
	Action   models.QuickAction `json:"action"`
	Text     string             `json:"text"`
}

type wsError struct {
	Error  string                `json:"error,omitempty"`
	Reply  string                `json:"reply,omitempty"`
	Status models.ResponseStatus `json:"status"`
}

type WebSocketController struct {
	chatbotService *services.ChatbotService
	upgrader       websocket.Upgrader
}

func NewWebSocketController(chatbotService *services.ChatbotService, allowedOrigins []string) *WebSocketController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &WebSocketController{
		chatbotService: chatbotService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	logger := log.With().Str("conn", connID).Logger()
	ctx := logger.WithContext(c.Request.Context())

	if !wc.sendGreeting(ctx, conn, identity) {
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			break
		}

		var response *models.ChatResponse
		switch msg.Type {
		case "", "message":
			response, err = wc.chatbotService.ProcessMessage(ctx, identity, models.ChatRequest{Message: msg.Message, Language: msg.Language})
		case "quick_action":
			response, err = wc.chatbotService.ProcessQuickAction(ctx, identity, msg.Action)
		case "ocr":
			response, err = wc.chatbotService.ProcessOcrText(ctx, identity, msg.Text)
		case "reset":
			err = wc.chatbotService.ResetSession(ctx, identity)
			if err == nil {
				response, err = wc.chatbotService.SessionState(ctx, identity)
			}
		default:
			err = apperrors.NewValidationError("unsupported message type")
		}

		if err != nil {
			if writeErr := conn.WriteJSON(wsErrorFrom(err)); writeErr != nil {
				break
			}
			continue
		}

		if err := conn.WriteJSON(response); err != nil {
			logger.Warn().Err(err).Msg("WebSocket write error")
			break
		}
	}
}

type jsonWriter interface {
	WriteJSON(v interface{}) error
}

// sendGreeting writes the session state for signed-in callers. It reports
// false when the connection can no longer be written.
func (wc *WebSocketController) sendGreeting(ctx context.Context, conn jsonWriter, identity *models.Identity) bool {
	state, err := wc.chatbotService.SessionState(ctx, identity)
	if err != nil {
		return true
	}
	if err := conn.WriteJSON(state); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("WebSocket greeting write error")
		return false
	}
	return true
}

func wsErrorFrom(err error) wsError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type != apperrors.ErrorTypeInternal {
		return wsError{Reply: appErr.Message, Status: models.StatusError}
	}
	log.Error().Err(err).Msg("websocket chat failed")
	return wsError{Error: "Failed to process message", Status: models.StatusError}
}
