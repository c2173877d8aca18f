package controllers

import (
	"errors"
	"net/http"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/middleware"
	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ChatbotController struct {
	chatbotService *services.ChatbotService
}

func NewChatbotController(chatbotService *services.ChatbotService) *ChatbotController {
	return &ChatbotController{
		chatbotService: chatbotService,
	}
}

// HandleChat processes chat messages
func (cc *ChatbotController) HandleChat(c *gin.Context) {
	var req models.ChatRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	response, err := cc.chatbotService.ProcessMessage(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HandleQuickAction runs one of the chat shortcuts
func (cc *ChatbotController) HandleQuickAction(c *gin.Context) {
	var req models.QuickActionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	response, err := cc.chatbotService.ProcessQuickAction(c.Request.Context(), middleware.IdentityFrom(c), req.Action)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HandleOcr stages text recognized from a prescription image
func (cc *ChatbotController) HandleOcr(c *gin.Context) {
	var req models.OcrRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	response, err := cc.chatbotService.ProcessOcrText(c.Request.Context(), middleware.IdentityFrom(c), req.Text)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetSession returns the greeting, quick actions and current session state
func (cc *ChatbotController) GetSession(c *gin.Context) {
	response, err := cc.chatbotService.SessionState(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ResetSession drops any active flow and staged scan
func (cc *ChatbotController) ResetSession(c *gin.Context) {
	if err := cc.chatbotService.ResetSession(c.Request.Context(), middleware.IdentityFrom(c)); err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Chat session cleared successfully",
	})
}

var intentDescriptions = map[models.MessageIntent]struct {
	description string
	examples    []string
}{
	models.IntentSymptomNavigation: {"Where to track medicines and visits for common conditions", []string{"I have a fever", "How do I manage my diabetes medicines?"}},
	models.IntentAppointmentCreate: {"Book, reschedule, or cancel appointments", []string{"Book appointment", "I want to schedule a visit"}},
	models.IntentPrescriptionView:  {"Find prescriptions and active medications", []string{"Show my prescriptions"}},
	models.IntentRefillRequest:     {"Request and track refills", []string{"How do I request a refill?"}},
	models.IntentOrderTrack:        {"Order status and tracking", []string{"Track order", "What is my delivery status?"}},
	models.IntentOrderShop:         {"Shop, cart, and checkout", []string{"How do I buy medicines?"}},
	models.IntentProfileSettings:   {"Profile, settings, and notifications", []string{"Change my notification settings"}},
	models.IntentRoleInfo:          {"Doctor, pharmacist, and admin dashboards", []string{"What can a pharmacist do here?"}},
	models.IntentEmergencyInfo:     {"Where to go in an emergency", []string{"This is an emergency"}},
	models.IntentHelpGeneral:       {"What the assistant can help with", []string{"What can you do?"}},
	models.IntentUnknown:           {"Anything else, with an offer to contact support", nil},
}

// GetSupportedIntents returns list of supported intents
func (cc *ChatbotController) GetSupportedIntents(c *gin.Context) {
	supported := cc.chatbotService.SupportedIntents()
	intents := make([]map[string]interface{}, 0, len(supported))
	for _, intent := range supported {
		entry := map[string]interface{}{"intent": intent}
		if d, ok := intentDescriptions[intent]; ok {
			entry["description"] = d.description
			if len(d.examples) > 0 {
				entry["examples"] = d.examples
			}
		}
		intents = append(intents, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"intents":       intents,
		"quick_actions": models.DefaultQuickActions(),
	})
}

// GetChatAnalytics returns chat analytics (admin only)
func (cc *ChatbotController) GetChatAnalytics(c *gin.Context) {
	summary, err := cc.chatbotService.AnalyticsSummary(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("chat analytics failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load chat analytics",
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// writeChatError maps a refused or failed chat request to a response. The
// AppError message of refusals is the reply shown to the user.
func writeChatError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Msg("chat request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process message",
		})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		status = http.StatusForbidden
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("chat request failed")
		c.JSON(status, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(status, gin.H{
		"reply":  appErr.Message,
		"status": models.StatusError,
	})
}
