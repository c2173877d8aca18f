package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/utils"

	"github.com/rs/zerolog/log"
)

// DoctorOptions is the fixed pick list offered by the booking flow.
var DoctorOptions = []string{
	"Dr. Sarah Johnson (General Medicine)",
	"Dr. Ahmed Khan (Cardiology)",
	"Any available doctor",
}

const (
	bookStartPrefix    = "Great, let's book an appointment. "
	doctorListPrompt   = "Here are some doctors you can choose from. Reply with a number or the doctor's name:\n"
	datePrompt         = "Great. For which date and time would you like this appointment? You can say things like 'tomorrow 10 AM', 'next Monday evening', or '6 Feb 2026 2:30 PM'."
	dateRetryPrompt    = "I couldn't understand that date and time. Please try something like 'tomorrow 10 AM', 'next Monday evening', or '6 Feb 2026 2:30 PM'."
	reasonPrompt       = "Got it. What is the main reason for this appointment?"
	bookFailedReply    = "I tried to create the appointment but something went wrong. Please try again later or use the Appointments page directly."
	bookStoppedReply   = "Okay, I've stopped booking this appointment. You can start again anytime."
	rescheduleStart    = "I'll reschedule your next upcoming appointment. What new date and time would you like? (For example: 2026-02-06 02:30 PM)"
	rescheduleStopped  = "Okay, I won't reschedule your appointment."
	cancelStart        = "I can cancel your next upcoming appointment. Please type YES to confirm, or NO to keep it."
	cancelDeclined     = "Okay, I won't cancel your appointment."
	noUpcomingReply    = "You don't have any upcoming appointments."
	listLoadFailed     = "I couldn't load your appointments right now. Please try again later or open Dashboard → Appointments."
	updateNotFound     = "I couldn't find that appointment to update. Please check it in Dashboard → Appointments."
	updateForbidden    = "You don't have permission to modify that appointment. Please use Dashboard → Appointments."
	updateFailed       = "I couldn't update that appointment right now. Please try again later or use Dashboard → Appointments."
	defaultDoctorLabel = "your doctor"
)

// FlowOutcome is the result of one flow turn. Next is nil once the flow
// has ended.
type FlowOutcome struct {
	Reply    string
	Next     *models.DialogueFlow
	HasError bool
}

type FlowEngine struct {
	appointments AppointmentStore
	dates        *utils.DateParser
}

func NewFlowEngine(appointments AppointmentStore, dates *utils.DateParser) *FlowEngine {
	if dates == nil {
		dates = utils.NewDateParser(time.Local, time.Now)
	}
	return &FlowEngine{appointments: appointments, dates: dates}
}

// FlowIntent is the analytics tag for turns of the given flow.
func FlowIntent(t models.FlowType) models.MessageIntent {
	switch t {
	case models.FlowRescheduleAppointment:
		return models.IntentAppointmentReschedule
	case models.FlowCancelAppointment:
		return models.IntentAppointmentCancel
	default:
		return models.IntentAppointmentBook
	}
}

// Start opens a fresh flow of the given type at step 1.
func (e *FlowEngine) Start(t models.FlowType) (string, *models.DialogueFlow) {
	flow := &models.DialogueFlow{Type: t, Step: 1}
	switch t {
	case models.FlowRescheduleAppointment:
		return rescheduleStart, flow
	case models.FlowCancelAppointment:
		return cancelStart, flow
	default:
		flow.Type = models.FlowBookAppointment
		return bookStartPrefix + doctorList(), flow
	}
}

// Advance feeds one user reply into the flow.
func (e *FlowEngine) Advance(ctx context.Context, flow *models.DialogueFlow, input string, identity *models.Identity) FlowOutcome {
	input = strings.TrimSpace(input)

	switch flow.Type {
	case models.FlowBookAppointment:
		return e.advanceBooking(ctx, flow, input, identity)
	case models.FlowRescheduleAppointment:
		return e.advanceReschedule(ctx, input, identity)
	case models.FlowCancelAppointment:
		return e.advanceCancel(ctx, input, identity)
	default:
		log.Warn().Str("flow", string(flow.Type)).Msg("unknown flow type, dropping flow")
		return FlowOutcome{Reply: updateFailed, HasError: true}
	}
}

func (e *FlowEngine) advanceBooking(ctx context.Context, flow *models.DialogueFlow, input string, identity *models.Identity) FlowOutcome {
	if isStopWord(input) {
		return FlowOutcome{Reply: bookStoppedReply}
	}

	switch flow.Step {
	case 1:
		if strings.Contains(strings.ToLower(input), "option") {
			return FlowOutcome{Reply: doctorList(), Next: flow}
		}
		next := &models.DialogueFlow{
			Type: flow.Type,
			Step: 2,
			Data: models.FlowData{DoctorName: pickDoctor(input)},
		}
		return FlowOutcome{Reply: datePrompt, Next: next}

	case 2:
		when, ok := e.dates.Parse(input)
		if !ok {
			return FlowOutcome{Reply: dateRetryPrompt, Next: flow}
		}
		next := &models.DialogueFlow{
			Type: flow.Type,
			Step: 3,
			Data: models.FlowData{DoctorName: flow.Data.DoctorName, Datetime: e.dates.FormatDisplay(when)},
		}
		return FlowOutcome{Reply: reasonPrompt, Next: next}

	default:
		appt, err := e.appointments.Create(ctx, identity, models.NewAppointment{
			DoctorName: flow.Data.DoctorName,
			Datetime:   flow.Data.Datetime,
			Reason:     input,
		})
		if err != nil {
			log.Error().Err(err).Msg("appointment create failed")
			return FlowOutcome{Reply: bookFailedReply, HasError: true}
		}
		return FlowOutcome{Reply: fmt.Sprintf(
			"Your appointment with %s on %s has been scheduled. You can review or manage it anytime in Dashboard → Appointments.",
			doctorLabel(appt.DoctorName, "the selected doctor"), appt.Datetime,
		)}
	}
}

func (e *FlowEngine) advanceReschedule(ctx context.Context, input string, identity *models.Identity) FlowOutcome {
	if isStopWord(input) {
		return FlowOutcome{Reply: rescheduleStopped}
	}

	appt, outcome, ok := e.nextUpcoming(ctx, identity)
	if !ok {
		return outcome
	}

	oldWhen := e.storedWhen(appt)
	updated, err := e.appointments.Update(ctx, appt.ID, models.AppointmentUpdate{Datetime: &input}, identity)
	if err != nil {
		return updateErrorOutcome(err)
	}
	return FlowOutcome{Reply: fmt.Sprintf(
		"Done. Your appointment with %s has been moved from %s to %s. You can review the change in Dashboard → Appointments.",
		doctorLabel(updated.DoctorName, defaultDoctorLabel), oldWhen, input,
	)}
}

func (e *FlowEngine) advanceCancel(ctx context.Context, input string, identity *models.Identity) FlowOutcome {
	answer := strings.ToLower(input)
	if answer != "yes" && answer != "y" {
		return FlowOutcome{Reply: cancelDeclined}
	}

	appt, outcome, ok := e.nextUpcoming(ctx, identity)
	if !ok {
		return outcome
	}

	cancelled := models.AppointmentCancelled
	if _, err := e.appointments.Update(ctx, appt.ID, models.AppointmentUpdate{Status: &cancelled}, identity); err != nil {
		return updateErrorOutcome(err)
	}
	return FlowOutcome{Reply: fmt.Sprintf(
		"Your appointment with %s on %s has been cancelled. You can always book a new one from Dashboard → Appointments or here in chat.",
		doctorLabel(appt.DoctorName, defaultDoctorLabel), e.storedWhen(appt),
	)}
}

// nextUpcoming picks the earliest appointment that is not cancelled. When
// there is none, the returned outcome ends the flow.
func (e *FlowEngine) nextUpcoming(ctx context.Context, identity *models.Identity) (*models.Appointment, FlowOutcome, bool) {
	upcoming, err := e.Upcoming(ctx, identity)
	if err != nil {
		log.Error().Err(err).Msg("appointment list failed")
		return nil, FlowOutcome{Reply: listLoadFailed, HasError: true}, false
	}
	if len(upcoming) == 0 {
		return nil, FlowOutcome{Reply: noUpcomingReply}, false
	}
	return &upcoming[0], FlowOutcome{}, true
}

// Upcoming lists the caller's non-cancelled appointments ordered by their
// datetime, falling back to creation time when the datetime does not parse.
func (e *FlowEngine) Upcoming(ctx context.Context, identity *models.Identity) ([]models.Appointment, error) {
	all, err := e.appointments.List(ctx, identity)
	if err != nil {
		return nil, err
	}

	upcoming := make([]models.Appointment, 0, len(all))
	for _, a := range all {
		if a.Status != models.AppointmentCancelled {
			upcoming = append(upcoming, a)
		}
	}
	e.sortByWhen(upcoming)
	return upcoming, nil
}

// ListReply renders up to three upcoming appointments.
func (e *FlowEngine) ListReply(ctx context.Context, identity *models.Identity) FlowOutcome {
	all, err := e.appointments.List(ctx, identity)
	if err != nil {
		log.Error().Err(err).Msg("appointment list failed")
		return FlowOutcome{Reply: listLoadFailed, HasError: true}
	}
	if len(all) == 0 {
		return FlowOutcome{Reply: "You don't have any upcoming appointments yet. You can create one here in chat or from Dashboard → Appointments."}
	}

	e.sortByWhen(all)
	if len(all) > 3 {
		all = all[:3]
	}

	lines := make([]string, 0, len(all))
	for i := range all {
		status := all[i].Status
		if status == "" {
			status = models.AppointmentScheduled
		}
		lines = append(lines, fmt.Sprintf("%d. %s with %s – %s",
			i+1, e.whenLabel(&all[i]), doctorLabel(all[i].DoctorName, defaultDoctorLabel), status))
	}
	return FlowOutcome{Reply: "Here are your next appointments (up to 3):\n" +
		strings.Join(lines, "\n") +
		"\n\nYou can manage them in Dashboard → Appointments."}
}

func (e *FlowEngine) sortByWhen(appts []models.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		return e.sortKey(&appts[i]).Before(e.sortKey(&appts[j]))
	})
}

func (e *FlowEngine) sortKey(a *models.Appointment) time.Time {
	if t, ok := e.dates.ParseStored(a.Datetime); ok {
		return t
	}
	return a.CreatedAt
}

func (e *FlowEngine) whenLabel(a *models.Appointment) string {
	if a.Datetime != "" {
		if t, ok := e.dates.ParseStored(a.Datetime); ok {
			return e.dates.FormatDisplay(t)
		}
		return a.Datetime
	}
	return e.dates.FormatDisplay(a.CreatedAt)
}

// storedWhen echoes the stored datetime as the user typed it.
func (e *FlowEngine) storedWhen(a *models.Appointment) string {
	if a.Datetime != "" {
		return a.Datetime
	}
	return e.dates.FormatDisplay(a.CreatedAt)
}

func updateErrorOutcome(err error) FlowOutcome {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		return FlowOutcome{Reply: updateNotFound}
	case apperrors.IsType(err, apperrors.ErrorTypeForbidden):
		return FlowOutcome{Reply: updateForbidden}
	default:
		log.Error().Err(err).Msg("appointment update failed")
		return FlowOutcome{Reply: updateFailed, HasError: true}
	}
}

func doctorList() string {
	lines := make([]string, len(DoctorOptions))
	for i, name := range DoctorOptions {
		lines[i] = fmt.Sprintf("%d. %s", i+1, name)
	}
	return doctorListPrompt + strings.Join(lines, "\n")
}

// pickDoctor maps a leading list number to the option, otherwise the input
// is the doctor's name.
func pickDoctor(input string) string {
	digits := input
	for i, r := range input {
		if r < '0' || r > '9' {
			digits = input[:i]
			break
		}
	}
	if n, err := strconv.Atoi(digits); err == nil && n >= 1 && n <= len(DoctorOptions) {
		return DoctorOptions[n-1]
	}
	return input
}

func doctorLabel(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func isStopWord(input string) bool {
	switch strings.ToLower(input) {
	case "stop", "exit", "cancel":
		return true
	}
	return false
}
