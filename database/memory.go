package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"

	"github.com/google/uuid"
)

// In-memory stores back the demo mode and the tests. They are safe for
// concurrent use.

func ownedBy(owner *models.Identity, userID, email string) bool {
	if owner == nil {
		return false
	}
	return (owner.UserID != "" && owner.UserID == userID) ||
		(owner.Email != "" && owner.Email == email)
}

type MemoryAppointmentStore struct {
	mu           sync.RWMutex
	appointments []models.Appointment
	now          func() time.Time
}

func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{now: time.Now}
}

func (s *MemoryAppointmentStore) Create(ctx context.Context, owner *models.Identity, in models.NewAppointment) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	appt := models.Appointment{
		ID:         uuid.NewString(),
		UserID:     owner.UserID,
		UserEmail:  owner.Email,
		DoctorName: in.DoctorName,
		Datetime:   in.Datetime,
		Reason:     in.Reason,
		Status:     models.AppointmentScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.appointments = append(s.appointments, appt)
	return &appt, nil
}

// Insert adds a fully formed appointment, used to seed demo data.
func (s *MemoryAppointmentStore) Insert(appt models.Appointment) models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.AppointmentScheduled
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = s.now()
	}
	s.appointments = append(s.appointments, appt)
	return appt
}

func (s *MemoryAppointmentStore) List(ctx context.Context, owner *models.Identity) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Appointment{}
	for _, a := range s.appointments {
		if ownedBy(owner, a.UserID, a.UserEmail) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryAppointmentStore) Update(ctx context.Context, id string, update models.AppointmentUpdate, caller *models.Identity) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.appointments {
		a := &s.appointments[i]
		if a.ID != id {
			continue
		}
		if !caller.Owns(a.UserID, a.UserEmail) {
			return nil, apperrors.NewForbiddenError("appointment belongs to another user")
		}
		if update.Datetime != nil {
			a.Datetime = *update.Datetime
		}
		if update.Status != nil {
			a.Status = *update.Status
		}
		a.UpdatedAt = s.now()
		updated := *a
		return &updated, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment %s not found", id))
}

type MemoryPrescriptionStore struct {
	mu            sync.RWMutex
	prescriptions []models.Prescription
}

func NewMemoryPrescriptionStore() *MemoryPrescriptionStore {
	return &MemoryPrescriptionStore{}
}

func (s *MemoryPrescriptionStore) Create(ctx context.Context, p *models.Prescription) (*models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *p
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.Status == "" {
		created.Status = models.PrescriptionActive
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	s.prescriptions = append(s.prescriptions, created)
	return &created, nil
}

func (s *MemoryPrescriptionStore) List(ctx context.Context, owner *models.Identity) ([]models.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Prescription{}
	for _, p := range s.prescriptions {
		if ownedBy(owner, p.UserID, p.UserEmail) {
			out = append(out, p)
		}
	}
	return out, nil
}

type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders []models.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{}
}

// Insert adds an order, used to seed demo data.
func (s *MemoryOrderStore) Insert(order models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	s.orders = append(s.orders, order)
	return order
}

func (s *MemoryOrderStore) FindMostRecent(ctx context.Context, owner *models.Identity) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Order
	for i := range s.orders {
		o := s.orders[i]
		if !ownedBy(owner, o.UserID, o.UserEmail) {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = &o
		}
	}
	return latest, nil
}

type MemoryAnalyticsStore struct {
	mu      sync.RWMutex
	records []models.ChatAnalyticsRecord
}

func NewMemoryAnalyticsStore() *MemoryAnalyticsStore {
	return &MemoryAnalyticsStore{}
}

func (s *MemoryAnalyticsStore) Record(ctx context.Context, rec models.ChatAnalyticsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (s *MemoryAnalyticsStore) Records() []models.ChatAnalyticsRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.ChatAnalyticsRecord(nil), s.records...)
}

func (s *MemoryAnalyticsStore) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	return SummarizeAnalytics(s.Records()), nil
}

// SummarizeAnalytics computes the same summary as the Mongo aggregation.
func SummarizeAnalytics(records []models.ChatAnalyticsRecord) *models.AnalyticsSummary {
	all := map[string]int64{}
	unanswered := map[string]int64{}

	var (
		total   int64
		maxMs   int64
		samples int64
	)
	for i := range records {
		r := &records[i]
		intent := string(r.Intent)
		if intent == "" {
			intent = "(none)"
		}
		all[intent]++
		if r.Unanswered() {
			unanswered[intent]++
		}
		if r.ResponseTimeMs > 0 {
			total += r.ResponseTimeMs
			samples++
			if r.ResponseTimeMs > maxMs {
				maxMs = r.ResponseTimeMs
			}
		}
	}

	summary := &models.AnalyticsSummary{
		MostCommonIntents: sortedCounts(all),
		UnansweredIntents: sortedCounts(unanswered),
	}
	if samples > 0 {
		summary.Performance = &models.ResponseTimeStats{
			AvgResponseTimeMs: float64(total) / float64(samples),
			MaxResponseTimeMs: maxMs,
			SampleSize:        samples,
		}
	}
	return summary
}

func sortedCounts(counts map[string]int64) []models.IntentCount {
	out := make([]models.IntentCount, 0, len(counts))
	for intent, count := range counts {
		out = append(out, models.IntentCount{Intent: intent, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Intent < out[j].Intent
	})
	return out
}
