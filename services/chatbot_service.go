package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/utils"

	"github.com/rs/zerolog/log"
)

const (
	emptyMessageReply = "Please type a question so I can help you."
	signInReply       = "For your privacy, chat is only available when you are signed in. Please log in to continue."
	troubleReply      = "I'm having trouble connecting right now. Please check your connection or try again in a moment. You can still use the main dashboard pages for appointments, prescriptions, and orders while chat recovers."
	scanIntroReply    = "I'll try to read the text from your prescription. Please hold it steady in front of the camera. This may take a few seconds..."
	uploadIntroReply  = "Please choose a clear photo of your prescription from your device. I will try to read the medicines for you."

	defaultMaxInputChars    = 300
	defaultAnalyticsTimeout = 2 * time.Second
)

// ChatbotOptions wires the orchestrator's collaborators. Analytics and
// Sessions may be nil.
type ChatbotOptions struct {
	Classifier       *utils.IntentClassifier
	Generator        *ResponseGenerator
	Flows            *FlowEngine
	Ocr              *OcrService
	Sessions         SessionStore
	Analytics        AnalyticsSink
	Summaries        AnalyticsStore
	MaxInputChars    int
	AnalyticsTimeout time.Duration
}

type ChatbotService struct {
	classifier       *utils.IntentClassifier
	generator        *ResponseGenerator
	flows            *FlowEngine
	ocr              *OcrService
	sessions         SessionStore
	analytics        AnalyticsSink
	summaries        AnalyticsStore
	maxInputChars    int
	analyticsTimeout time.Duration
	locks            *sessionLocks
	now              func() time.Time
}

func NewChatbotService(opts ChatbotOptions) *ChatbotService {
	if opts.Classifier == nil {
		opts.Classifier = utils.NewIntentClassifier()
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = defaultMaxInputChars
	}
	if opts.AnalyticsTimeout <= 0 {
		opts.AnalyticsTimeout = defaultAnalyticsTimeout
	}
	return &ChatbotService{
		classifier:       opts.Classifier,
		generator:        opts.Generator,
		flows:            opts.Flows,
		ocr:              opts.Ocr,
		sessions:         opts.Sessions,
		analytics:        opts.Analytics,
		summaries:        opts.Summaries,
		maxInputChars:    opts.MaxInputChars,
		analyticsTimeout: opts.AnalyticsTimeout,
		locks:            newSessionLocks(),
		now:              time.Now,
	}
}

// ProcessMessage loads the caller's session, handles one message and saves
// the session back. Refused requests return an AppError whose message is the
// reply to show.
func (s *ChatbotService) ProcessMessage(ctx context.Context, identity *models.Identity, req models.ChatRequest) (*models.ChatResponse, error) {
	if err := s.refusal(identity, req.Message); err != nil {
		return nil, err
	}

	var resp *models.ChatResponse
	err := s.withSession(ctx, identity, func(ctx context.Context, session *models.ChatSession) error {
		var err error
		resp, err = s.HandleMessage(ctx, identity, session, req)
		return err
	})
	return resp, err
}

// ProcessQuickAction handles a chat shortcut against the caller's session.
func (s *ChatbotService) ProcessQuickAction(ctx context.Context, identity *models.Identity, action models.QuickAction) (*models.ChatResponse, error) {
	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthorizedError(signInReply)
	}

	var resp *models.ChatResponse
	err := s.withSession(ctx, identity, func(ctx context.Context, session *models.ChatSession) error {
		var err error
		resp, err = s.HandleQuickAction(ctx, identity, session, action)
		return err
	})
	return resp, err
}

// ProcessOcrText stages a scan for the caller's session.
func (s *ChatbotService) ProcessOcrText(ctx context.Context, identity *models.Identity, raw string) (*models.ChatResponse, error) {
	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthorizedError(signInReply)
	}

	var resp *models.ChatResponse
	err := s.withSession(ctx, identity, func(ctx context.Context, session *models.ChatSession) error {
		resp = s.HandleOcrText(ctx, session, raw)
		return nil
	})
	return resp, err
}

// ResetSession drops the caller's flow and staged scan.
func (s *ChatbotService) ResetSession(ctx context.Context, identity *models.Identity) error {
	if !identity.IsAuthenticated() {
		return apperrors.NewUnauthorizedError(signInReply)
	}
	key := identity.SessionKey()
	unlock := s.locks.lock(key)
	defer unlock()

	if s.sessions == nil {
		return nil
	}
	return s.sessions.Delete(ctx, key)
}

// SessionState returns the greeting and current state without changing it.
func (s *ChatbotService) SessionState(ctx context.Context, identity *models.Identity) (*models.ChatResponse, error) {
	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthorizedError(signInReply)
	}
	session := s.loadSession(ctx, identity.SessionKey())
	resp := s.respond(Greeting(identity), models.IntentHelpGeneral, session)
	resp.Actions = models.DefaultQuickActions()
	return resp, nil
}

func (s *ChatbotService) SupportedIntents() []models.MessageIntent {
	return s.classifier.SupportedIntents()
}

func (s *ChatbotService) AnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	if s.summaries == nil {
		return nil, apperrors.NewInternalError("chat analytics are not configured", nil)
	}
	summary, err := s.summaries.Summary(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load chat analytics", err)
	}
	return summary, nil
}

// Greeting is the first message of a new conversation.
func Greeting(identity *models.Identity) string {
	name := "there"
	if identity != nil && strings.TrimSpace(identity.Name) != "" {
		name = strings.TrimSpace(identity.Name)
	}
	return fmt.Sprintf("Hi %s! I can help you book appointments, manage prescriptions, request refills, track orders, or navigate your dashboard. What would you like to do?", name)
}

// HandleMessage applies one message to the session. The session is updated
// in place.
func (s *ChatbotService) HandleMessage(ctx context.Context, identity *models.Identity, session *models.ChatSession, req models.ChatRequest) (resp *models.ChatResponse, err error) {
	if err := s.refusal(identity, req.Message); err != nil {
		return nil, err
	}

	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			utils.LoggerFromContext(ctx).Error().Interface("panic", r).Msg("chat message handling panicked")
			resp = s.failure(ctx, identity, session, started)
			err = nil
		}
	}()

	message := strings.TrimSpace(req.Message)
	lang := models.NormalizeLanguage(string(req.Language))

	if command := ParseOcrCommand(message); command != OcrCommandNone {
		if session.HasPendingOcr() {
			return s.handleOcrCommand(ctx, identity, session, command), nil
		}
		if command == OcrCommandAdd && !session.HasFlow() {
			reply, _ := s.ocr.Confirm(ctx, identity, nil)
			return s.respond(reply, models.IntentPrescriptionConfirm, session), nil
		}
	}

	if session.HasFlow() {
		flowType := session.Flow.Type
		outcome := s.flows.Advance(ctx, session.Flow, message, identity)
		session.Flow = outcome.Next

		intent := FlowIntent(flowType)
		s.record(ctx, identity, models.ChatAnalyticsRecord{Intent: intent, HasError: outcome.HasError}, started)
		return s.respond(outcome.Reply, intent, session), nil
	}

	if intent, ok := utils.DetectLocalIntent(message); ok {
		reply, flow := s.flows.Start(models.FlowBookAppointment)
		session.Flow = flow
		s.record(ctx, identity, models.ChatAnalyticsRecord{Intent: intent}, started)
		return s.respond(reply, intent, session), nil
	}

	classification := s.classifier.Classify(message)
	canned := s.generator.Generate(ctx, classification.Intent, identity, classification.Guide)
	refined := s.generator.Refine(ctx, classification.Intent, message, identity, lang, canned)

	s.record(ctx, identity, models.ChatAnalyticsRecord{
		Intent:                 classification.Intent,
		IsUnknownIntent:        classification.Intent == models.IntentUnknown,
		SupportOffered:         refined.SupportOffered,
		UsedExternalCompletion: refined.UsedExternalCompletion,
	}, started)

	return s.respond(refined.Text, classification.Intent, session), nil
}

// HandleQuickAction starts a flow or answers a shortcut. Starting a flow
// replaces any flow already in progress.
func (s *ChatbotService) HandleQuickAction(ctx context.Context, identity *models.Identity, session *models.ChatSession, action models.QuickAction) (resp *models.ChatResponse, err error) {
	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthorizedError(signInReply)
	}

	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			utils.LoggerFromContext(ctx).Error().Interface("panic", r).Msg("chat quick action panicked")
			resp = s.failure(ctx, identity, session, started)
			err = nil
		}
	}()

	var (
		reply    string
		intent   models.MessageIntent
		hasError bool
	)
	switch action {
	case models.QuickActionBook:
		reply, session.Flow = s.flows.Start(models.FlowBookAppointment)
		intent = models.IntentAppointmentBook
	case models.QuickActionReschedule:
		reply, session.Flow = s.flows.Start(models.FlowRescheduleAppointment)
		intent = models.IntentAppointmentReschedule
	case models.QuickActionCancel:
		reply, session.Flow = s.flows.Start(models.FlowCancelAppointment)
		intent = models.IntentAppointmentCancel
	case models.QuickActionListAppointments:
		outcome := s.flows.ListReply(ctx, identity)
		reply, hasError = outcome.Reply, outcome.HasError
		intent = models.IntentAppointmentList
	case models.QuickActionScanPrescription:
		reply, intent = scanIntroReply, models.IntentPrescriptionScan
	case models.QuickActionUploadPrescription:
		reply, intent = uploadIntroReply, models.IntentPrescriptionScan
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown quick action %q", action))
	}

	s.record(ctx, identity, models.ChatAnalyticsRecord{Intent: intent, HasError: hasError}, started)
	return s.respond(reply, intent, session), nil
}

// HandleOcrText stages recognized scan text. A newer scan replaces staged
// items; an unreadable one leaves them untouched.
func (s *ChatbotService) HandleOcrText(ctx context.Context, session *models.ChatSession, raw string) *models.ChatResponse {
	staging := s.ocr.Stage(raw)
	if !staging.Empty {
		session.PendingOcr = staging.Pending
	}
	utils.LoggerFromContext(ctx).Debug().
		Int("medicine_lines", len(staging.Extraction.MedicineLines)).
		Int("staged", len(staging.Pending)).
		Msg("prescription scan processed")
	return s.respond(staging.Reply, models.IntentPrescriptionScan, session)
}

func (s *ChatbotService) handleOcrCommand(ctx context.Context, identity *models.Identity, session *models.ChatSession, command OcrCommand) *models.ChatResponse {
	pending := session.PendingOcr
	session.PendingOcr = nil

	if command == OcrCommandCancel {
		return s.respond(s.ocr.Discard(), models.IntentPrescriptionConfirm, session)
	}

	reply, created := s.ocr.Confirm(ctx, identity, pending)
	resp := s.respond(reply, models.IntentPrescriptionConfirm, session)
	if created == 0 {
		resp.Status = models.StatusError
	}
	return resp
}

func (s *ChatbotService) refusal(identity *models.Identity, message string) error {
	message = strings.TrimSpace(message)
	switch {
	case message == "":
		return apperrors.NewValidationError(emptyMessageReply)
	case !identity.IsAuthenticated():
		return apperrors.NewUnauthorizedError(signInReply)
	case len([]rune(message)) > s.maxInputChars:
		return apperrors.NewValidationError(fmt.Sprintf("Please keep your message under %d characters so I can help you.", s.maxInputChars))
	}
	return nil
}

func (s *ChatbotService) failure(ctx context.Context, identity *models.Identity, session *models.ChatSession, started time.Time) *models.ChatResponse {
	s.record(ctx, identity, models.ChatAnalyticsRecord{
		Intent:         models.IntentError,
		HasError:       true,
		SupportOffered: true,
	}, started)
	return s.respond(troubleReply, models.IntentError, session)
}

func (s *ChatbotService) respond(reply string, intent models.MessageIntent, session *models.ChatSession) *models.ChatResponse {
	resp := models.NewTextResponse(reply, intent)
	resp.FlowActive = session.HasFlow()
	resp.OcrPending = session.HasPendingOcr()
	return resp
}

// record writes one analytics event with a bounded context. Failures are
// logged and dropped.
func (s *ChatbotService) record(ctx context.Context, identity *models.Identity, rec models.ChatAnalyticsRecord, started time.Time) {
	if s.analytics == nil {
		return
	}
	rec.Role = roleOf(identity)
	if identity != nil {
		rec.UserID = identity.UserID
	}
	rec.ResponseTimeMs = s.now().Sub(started).Milliseconds()
	rec.Timestamp = s.now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.analyticsTimeout)
	defer cancel()
	if err := s.analytics.Record(ctx, rec); err != nil {
		utils.LoggerFromContext(ctx).Warn().Err(err).Str("intent", string(rec.Intent)).Msg("chat analytics write failed")
	}
}

func (s *ChatbotService) withSession(ctx context.Context, identity *models.Identity, fn func(context.Context, *models.ChatSession) error) error {
	key := identity.SessionKey()
	ctx = utils.ContextWithSession(ctx, key)

	unlock := s.locks.lock(key)
	defer unlock()

	session := s.loadSession(ctx, key)
	if err := fn(ctx, session); err != nil {
		return err
	}

	session.UpdatedAt = s.now()
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, session); err != nil {
			utils.LoggerFromContext(ctx).Error().Err(err).Msg("chat session save failed")
		}
	}
	return nil
}

func (s *ChatbotService) loadSession(ctx context.Context, key string) *models.ChatSession {
	if s.sessions == nil {
		return models.NewChatSession(key)
	}
	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("chat session load failed, starting fresh")
		return models.NewChatSession(key)
	}
	if session == nil {
		return models.NewChatSession(key)
	}
	return session
}
