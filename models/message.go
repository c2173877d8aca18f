package models

import "time"

type MessageIntent string

const (
	IntentSymptomNavigation MessageIntent = "symptom.navigation"
	IntentAppointmentCreate MessageIntent = "appointment.create"
	IntentPrescriptionView  MessageIntent = "prescription.view"
	IntentRefillRequest     MessageIntent = "refill.request"
	IntentOrderTrack        MessageIntent = "order.track"
	IntentOrderShop         MessageIntent = "order.shop"
	IntentProfileSettings   MessageIntent = "profile.settings"
	IntentRoleInfo          MessageIntent = "role.info"
	IntentEmergencyInfo     MessageIntent = "emergency.info"
	IntentHelpGeneral       MessageIntent = "help.general"
	IntentUnknown           MessageIntent = "unknown"
	IntentError             MessageIntent = "error"

	// Tags used by the orchestrator for flow turns and quick actions.
	IntentAppointmentBook       MessageIntent = "appointment.book"
	IntentAppointmentReschedule MessageIntent = "appointment.reschedule"
	IntentAppointmentCancel     MessageIntent = "appointment.cancel"
	IntentAppointmentList       MessageIntent = "appointment.list"
	IntentPrescriptionScan      MessageIntent = "prescription.scan"
	IntentPrescriptionConfirm   MessageIntent = "prescription.confirm"
)

// IsSafetySensitive reports whether replies for the intent must stay canned.
func (i MessageIntent) IsSafetySensitive() bool {
	return i == IntentSymptomNavigation || i == IntentEmergencyInfo
}

// Confidence is a coarse score reported to the UI alongside the reply.
func (i MessageIntent) Confidence() float64 {
	switch i {
	case IntentUnknown:
		return 0.2
	case IntentHelpGeneral:
		return 0.4
	case IntentError:
		return 0
	default:
		return 1.0
	}
}

// Language preference for refined replies
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
)

// NormalizeLanguage falls back to English for anything unsupported.
func NormalizeLanguage(lang string) Language {
	if Language(lang) == LanguageHindi {
		return LanguageHindi
	}
	return LanguageEnglish
}

type ChatRequest struct {
	Message  string   `json:"message"`
	Language Language `json:"language,omitempty"`
}

type QuickActionRequest struct {
	Action   QuickAction `json:"action" binding:"required"`
	Language Language    `json:"language,omitempty"`
}

type OcrRequest struct {
	Text string `json:"text"`
}

type ResponseStatus string

const (
	StatusOK    ResponseStatus = "ok"
	StatusError ResponseStatus = "error"
)

type ChatResponse struct {
	Reply      string         `json:"reply"`
	Intent     MessageIntent  `json:"intent"`
	Confidence float64        `json:"confidence"`
	Status     ResponseStatus `json:"status"`
	FlowActive bool           `json:"flow_active"`
	OcrPending bool           `json:"ocr_pending"`
	Actions    []Action       `json:"actions,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type Action struct {
	Type        string      `json:"type"`
	Label       string      `json:"label"`
	ID          QuickAction `json:"id,omitempty"`
	Message     string      `json:"message,omitempty"`
	Description string      `json:"description,omitempty"`
}

// QuickAction identifies one of the fixed chat shortcuts
type QuickAction string

const (
	QuickActionBook               QuickAction = "book"
	QuickActionReschedule         QuickAction = "reschedule"
	QuickActionCancel             QuickAction = "cancel"
	QuickActionListAppointments   QuickAction = "list-appointments"
	QuickActionScanPrescription   QuickAction = "scan-prescription"
	QuickActionUploadPrescription QuickAction = "upload-prescription"
)

// DefaultQuickActions mirrors the chips shown under the chat window.
func DefaultQuickActions() []Action {
	return []Action{
		{Type: "quick_action", Label: "Book", ID: QuickActionBook},
		{Type: "quick_action", Label: "Reschedule", ID: QuickActionReschedule},
		{Type: "quick_action", Label: "Cancel", ID: QuickActionCancel},
		{Type: "quick_action", Label: "My Appointments", ID: QuickActionListAppointments},
		{Type: "message", Label: "Prescriptions", Message: "Where can I view my prescriptions and active medications?"},
		{Type: "message", Label: "Refill", Message: "How do I request a refill for my medicines?"},
		{Type: "quick_action", Label: "Scan Prescription", ID: QuickActionScanPrescription},
		{Type: "quick_action", Label: "Upload Prescription", ID: QuickActionUploadPrescription},
		{Type: "message", Label: "Track Order", Message: "How can I see the status and tracking for my medicine orders?"},
	}
}

// NewTextResponse creates a simple text response
func NewTextResponse(text string, intent MessageIntent) *ChatResponse {
	status := StatusOK
	if intent == IntentError {
		status = StatusError
	}
	return &ChatResponse{
		Reply:      text,
		Intent:     intent,
		Confidence: intent.Confidence(),
		Status:     status,
		Timestamp:  time.Now(),
	}
}
