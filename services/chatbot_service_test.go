package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/database"
	"medicose-chatbot-backend/models"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	args := m.Called(ctx, req)
	return args.Get(0).(CompletionResult)
}

type chatFixture struct {
	svc           *ChatbotService
	completer     *MockCompleter
	appointments  *database.MemoryAppointmentStore
	prescriptions *database.MemoryPrescriptionStore
	analytics     *database.MemoryAnalyticsStore
	sessions      *database.LRUSessionStore
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	sessions, err := database.NewLRUSessionStore(16)
	require.NoError(t, err)

	f := &chatFixture{
		completer:     new(MockCompleter),
		appointments:  database.NewMemoryAppointmentStore(),
		prescriptions: database.NewMemoryPrescriptionStore(),
		analytics:     database.NewMemoryAnalyticsStore(),
		sessions:      sessions,
	}
	f.svc = NewChatbotService(ChatbotOptions{
		Generator: NewResponseGenerator(database.NewMemoryOrderStore(), f.completer),
		Flows:     NewFlowEngine(f.appointments, testDates()),
		Ocr:       NewOcrService(f.prescriptions),
		Sessions:  sessions,
		Analytics: f.analytics,
		Summaries: f.analytics,
	})
	return f
}

func (f *chatFixture) send(t *testing.T, message string) *models.ChatResponse {
	t.Helper()
	resp, err := f.svc.ProcessMessage(context.Background(), patient, models.ChatRequest{Message: message})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func (f *chatFixture) session(t *testing.T) *models.ChatSession {
	t.Helper()
	session, err := f.sessions.Get(context.Background(), patient.SessionKey())
	require.NoError(t, err)
	return session
}

func TestChatbot_RefusesUnauthenticated(t *testing.T) {
	f := newChatFixture(t)

	for _, identity := range []*models.Identity{nil, {Role: models.RoleAdmin}} {
		resp, err := f.svc.ProcessMessage(context.Background(), identity, models.ChatRequest{Message: "book a doctor appointment"})
		assert.Nil(t, resp)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "For your privacy, chat is only available when you are signed in. Please log in to continue.", appErr.Message)
	}

	f.completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	assert.Empty(t, f.analytics.Records())
	assert.Zero(t, f.sessions.Len())
}

func TestChatbot_InputValidation(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.ProcessMessage(context.Background(), patient, models.ChatRequest{Message: "   "})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "Please type a question so I can help you.")

	// Emptiness is checked before sign-in, as the chat endpoint always has.
	_, err = f.svc.ProcessMessage(context.Background(), nil, models.ChatRequest{Message: ""})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.svc.ProcessMessage(context.Background(), patient, models.ChatRequest{Message: strings.Repeat("a", 301)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "under 300 characters")

	assert.Empty(t, f.analytics.Records())
}

func TestChatbot_LocalBookingFlowEndToEnd(t *testing.T) {
	f := newChatFixture(t)

	resp := f.send(t, "I want to book a doctor")
	assert.Equal(t, models.IntentAppointmentBook, resp.Intent)
	assert.True(t, resp.FlowActive)
	assert.Contains(t, resp.Reply, "Great, let's book an appointment.")

	resp = f.send(t, "2")
	assert.Contains(t, resp.Reply, "For which date and time")

	resp = f.send(t, "sometime soon")
	assert.Contains(t, resp.Reply, "I couldn't understand that date and time.")
	assert.Equal(t, 2, f.session(t).Flow.Step)

	resp = f.send(t, "tomorrow 10am")
	assert.Contains(t, resp.Reply, "main reason")

	resp = f.send(t, "checkup")
	assert.False(t, resp.FlowActive)
	assert.Contains(t, resp.Reply, "Dr. Ahmed Khan (Cardiology) on Feb 06, 2026, 10:00 AM has been scheduled")

	appts, err := f.appointments.List(context.Background(), patient)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "checkup", appts[0].Reason)

	records := f.analytics.Records()
	require.Len(t, records, 5)
	for _, rec := range records {
		assert.Equal(t, models.IntentAppointmentBook, rec.Intent)
		assert.Equal(t, patient.UserID, rec.UserID)
	}
	f.completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChatbot_ActiveFlowTakesPrecedenceOverClassifier(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.ProcessQuickAction(context.Background(), patient, models.QuickActionCancel)
	require.NoError(t, err)

	resp := f.send(t, "where is my prescription")
	assert.Equal(t, "Okay, I won't cancel your appointment.", resp.Reply)
	assert.Equal(t, models.IntentAppointmentCancel, resp.Intent)
	assert.Nil(t, f.session(t).Flow)
}

func TestChatbot_RefinedReply(t *testing.T) {
	f := newChatFixture(t)
	f.completer.On("Complete", mock.Anything, mock.MatchedBy(func(req CompletionRequest) bool {
		return req.Question == "I need a refill" && req.Role == models.RoleUser && req.Language == models.LanguageHindi &&
			strings.HasPrefix(req.Suggestion, "Refills:")
	})).Return(CompletionResult{Text: "Refill ke liye Dashboard → Prescriptions kholiye.", Available: true}).Once()

	resp, err := f.svc.ProcessMessage(context.Background(), patient, models.ChatRequest{Message: "I need a refill", Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Refill ke liye Dashboard → Prescriptions kholiye.", resp.Reply)
	assert.Equal(t, models.IntentRefillRequest, resp.Intent)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.Equal(t, models.StatusOK, resp.Status)

	records := f.analytics.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].UsedExternalCompletion)
	assert.False(t, records[0].IsUnknownIntent)
	f.completer.AssertExpectations(t)
}

func TestChatbot_UnavailableCompletionFallsBackToCanned(t *testing.T) {
	f := newChatFixture(t)
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(Unavailable())

	resp := f.send(t, "xyzzy plugh")
	assert.Equal(t, models.IntentUnknown, resp.Intent)
	assert.Equal(t, 0.2, resp.Confidence)
	assert.Equal(t, unknownReply+"\n\n"+RoleIntro(models.RoleUser)+"\n\nWould you like me to connect you with support?", resp.Reply)

	records := f.analytics.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].IsUnknownIntent)
	assert.True(t, records[0].SupportOffered)
	assert.False(t, records[0].UsedExternalCompletion)
}

func TestChatbot_SafetySensitiveNeverCallsCompleter(t *testing.T) {
	f := newChatFixture(t)

	resp := f.send(t, "I have a fever since yesterday")
	assert.Equal(t, models.IntentSymptomNavigation, resp.Intent)
	assert.Contains(t, resp.Reply, "For fever, MediCose can help you")
	assert.Contains(t, resp.Reply, "not for diagnosis or emergency care.")

	resp = f.send(t, "this is an emergency")
	assert.Equal(t, models.IntentEmergencyInfo, resp.Intent)

	f.completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChatbot_PanicBecomesTroubleReply(t *testing.T) {
	f := newChatFixture(t)
	f.completer.On("Complete", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		panic("provider exploded")
	}).Return(Unavailable())

	resp := f.send(t, "I need a refill")
	assert.Equal(t, models.IntentError, resp.Intent)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Zero(t, resp.Confidence)
	assert.Contains(t, resp.Reply, "I'm having trouble connecting right now.")

	records := f.analytics.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].HasError)
	assert.Equal(t, models.IntentError, records[0].Intent)
}

func TestChatbot_AnalyticsFailureDoesNotAffectReply(t *testing.T) {
	f := newChatFixture(t)
	f.svc.analytics = failingSink{}
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(Unavailable())

	resp := f.send(t, "I need a refill")
	assert.Equal(t, models.IntentRefillRequest, resp.Intent)
	assert.Equal(t, models.StatusOK, resp.Status)
}

func TestChatbot_OcrConfirmAndCancel(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ProcessOcrText(ctx, patient, sampleScan)
	require.NoError(t, err)
	assert.True(t, resp.OcrPending)
	assert.Contains(t, resp.Reply, "type 'ADD MEDICINES'")

	resp = f.send(t, "add medicines")
	assert.False(t, resp.OcrPending)
	assert.Contains(t, resp.Reply, "I created 2 draft prescription(s)")

	saved, err := f.prescriptions.List(ctx, patient)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	_, err = f.svc.ProcessOcrText(ctx, patient, sampleScan)
	require.NoError(t, err)
	resp = f.send(t, "CANCEL")
	assert.Equal(t, "Okay, I won't save any medicines from that scan. You can still add them manually in Dashboard → Prescriptions.", resp.Reply)

	saved, _ = f.prescriptions.List(ctx, patient)
	assert.Len(t, saved, 2)
	assert.Empty(t, f.analytics.Records())
}

func TestChatbot_AddMedicinesWithNothingStaged(t *testing.T) {
	f := newChatFixture(t)

	resp := f.send(t, "ADD MEDICINES")
	assert.Equal(t, ocrNothingStaged, resp.Reply)
	assert.Equal(t, models.StatusOK, resp.Status)

	saved, _ := f.prescriptions.List(context.Background(), patient)
	assert.Empty(t, saved)
	f.completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChatbot_StagingDoesNotLockSession(t *testing.T) {
	f := newChatFixture(t)
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(Unavailable())
	ctx := context.Background()

	_, err := f.svc.ProcessOcrText(ctx, patient, "Metformin 500mg")
	require.NoError(t, err)

	resp := f.send(t, "I need a refill")
	assert.Equal(t, models.IntentRefillRequest, resp.Intent)
	assert.True(t, resp.OcrPending)

	_, err = f.svc.ProcessOcrText(ctx, patient, "Amlodipine 5mg tablet\nAtorvastatin 10mg")
	require.NoError(t, err)
	staged := f.session(t).PendingOcr
	require.Len(t, staged, 2)
	assert.Equal(t, "Amlodipine", staged[0].MedicineName)

	_, err = f.svc.ProcessOcrText(ctx, patient, "  ")
	require.NoError(t, err)
	assert.Len(t, f.session(t).PendingOcr, 2)
}

func TestChatbot_QuickActions(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ProcessQuickAction(ctx, patient, models.QuickActionListAppointments)
	require.NoError(t, err)
	assert.Equal(t, models.IntentAppointmentList, resp.Intent)
	assert.Contains(t, resp.Reply, "You don't have any upcoming appointments yet.")

	resp, err = f.svc.ProcessQuickAction(ctx, patient, models.QuickActionBook)
	require.NoError(t, err)
	assert.True(t, resp.FlowActive)

	resp, err = f.svc.ProcessQuickAction(ctx, patient, models.QuickActionReschedule)
	require.NoError(t, err)
	assert.Equal(t, models.FlowRescheduleAppointment, f.session(t).Flow.Type)

	resp, err = f.svc.ProcessQuickAction(ctx, patient, models.QuickActionScanPrescription)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPrescriptionScan, resp.Intent)
	assert.True(t, resp.FlowActive)

	_, err = f.svc.ProcessQuickAction(ctx, patient, models.QuickAction("dance"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.svc.ProcessQuickAction(ctx, nil, models.QuickActionBook)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	assert.Len(t, f.analytics.Records(), 4)
}

func TestChatbot_ResetAndSessionState(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessQuickAction(ctx, patient, models.QuickActionBook)
	require.NoError(t, err)

	state, err := f.svc.SessionState(ctx, patient)
	require.NoError(t, err)
	assert.True(t, state.FlowActive)
	assert.Equal(t, "Hi Pat! I can help you book appointments, manage prescriptions, request refills, track orders, or navigate your dashboard. What would you like to do?", state.Reply)
	assert.NotEmpty(t, state.Actions)

	require.NoError(t, f.svc.ResetSession(ctx, patient))
	state, err = f.svc.SessionState(ctx, patient)
	require.NoError(t, err)
	assert.False(t, state.FlowActive)
}

func TestChatbot_AnalyticsSummary(t *testing.T) {
	f := newChatFixture(t)
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(Unavailable())

	f.send(t, "I need a refill")
	f.send(t, "xyzzy")
	f.send(t, "refill please")

	summary, err := f.svc.AnalyticsSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.MostCommonIntents, 2)
	assert.Equal(t, models.IntentCount{Intent: "refill.request", Count: 2}, summary.MostCommonIntents[0])
	assert.Equal(t, []models.IntentCount{{Intent: "unknown", Count: 1}}, summary.UnansweredIntents)

	bare := NewChatbotService(ChatbotOptions{})
	_, err = bare.AnalyticsSummary(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestGreeting(t *testing.T) {
	assert.True(t, strings.HasPrefix(Greeting(nil), "Hi there!"))
	assert.True(t, strings.HasPrefix(Greeting(&models.Identity{Name: "  Ana "}), "Hi Ana!"))
}

func TestChatbot_SessionStoreErrorsAreContained(t *testing.T) {
	f := newChatFixture(t)
	f.svc.sessions = brokenSessions{}
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(Unavailable())

	resp := f.send(t, "I need a refill")
	assert.Equal(t, models.IntentRefillRequest, resp.Intent)
}

type brokenSessions struct{}

func (brokenSessions) Get(ctx context.Context, key string) (*models.ChatSession, error) {
	return nil, errors.New("redis down")
}

func (brokenSessions) Save(ctx context.Context, session *models.ChatSession) error {
	return errors.New("redis down")
}

func (brokenSessions) Delete(ctx context.Context, key string) error {
	return errors.New("redis down")
}
