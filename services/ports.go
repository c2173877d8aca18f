package services

import (
	"context"

	"medicose-chatbot-backend/models"
)

// AppointmentStore is the appointment persistence used by the flows.
// Update returns NOT_FOUND or FORBIDDEN apperrors for missing or foreign
// appointments.
type AppointmentStore interface {
	Create(ctx context.Context, owner *models.Identity, in models.NewAppointment) (*models.Appointment, error)
	List(ctx context.Context, owner *models.Identity) ([]models.Appointment, error)
	Update(ctx context.Context, id string, update models.AppointmentUpdate, caller *models.Identity) (*models.Appointment, error)
}

type PrescriptionStore interface {
	Create(ctx context.Context, p *models.Prescription) (*models.Prescription, error)
	List(ctx context.Context, owner *models.Identity) ([]models.Prescription, error)
}

// OrderStore returns nil, nil when the owner has no orders.
type OrderStore interface {
	FindMostRecent(ctx context.Context, owner *models.Identity) (*models.Order, error)
}

type CompletionRequest struct {
	Question   string
	Role       models.Role
	Language   models.Language
	Suggestion string
}

// CompletionResult is either Available with Text or unavailable. Transport
// errors, timeouts and empty payloads all collapse into unavailable.
type CompletionResult struct {
	Text      string
	Available bool
}

func Unavailable() CompletionResult {
	return CompletionResult{}
}

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) CompletionResult
}

// AnalyticsSink receives one record per chat exchange.
type AnalyticsSink interface {
	Record(ctx context.Context, rec models.ChatAnalyticsRecord) error
}

type AnalyticsStore interface {
	AnalyticsSink
	Summary(ctx context.Context) (*models.AnalyticsSummary, error)
}

// SessionStore returns nil, nil from Get when no session exists.
type SessionStore interface {
	Get(ctx context.Context, key string) (*models.ChatSession, error)
	Save(ctx context.Context, session *models.ChatSession) error
	Delete(ctx context.Context, key string) error
}
