package models

import "time"

type FlowType string

const (
	FlowBookAppointment       FlowType = "bookAppointment"
	FlowRescheduleAppointment FlowType = "rescheduleAppointment"
	FlowCancelAppointment     FlowType = "cancelAppointment"
)

// FlowData holds the appointment fields collected so far. Only the booking
// flow fills it; DoctorName is set from step 2 on and Datetime from step 3 on.
type FlowData struct {
	DoctorName string `json:"doctor_name,omitempty"`
	Datetime   string `json:"datetime,omitempty"`
}

// DialogueFlow is the state of one multi-turn flow.
type DialogueFlow struct {
	Type FlowType `json:"type"`
	Step int      `json:"step"`
	Data FlowData `json:"data"`
}

// ParsedMedicine is a candidate medicine read from a prescription scan
type ParsedMedicine struct {
	OriginalLine string `json:"original_line"`
	MedicineName string `json:"medicine_name"`
	Strength     string `json:"strength"`
}

// OcrExtraction is the split of a scan into medicine and other lines
type OcrExtraction struct {
	MedicineLines   []string         `json:"medicine_lines"`
	OtherLines      []string         `json:"other_lines"`
	ParsedMedicines []ParsedMedicine `json:"parsed_medicines"`
}

// ChatSession is the ephemeral per-caller conversation state. It owns at
// most one active flow and one OCR staging slot.
type ChatSession struct {
	ID         string           `json:"id"`
	Flow       *DialogueFlow    `json:"flow,omitempty"`
	PendingOcr []ParsedMedicine `json:"pending_ocr,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func NewChatSession(id string) *ChatSession {
	return &ChatSession{ID: id, UpdatedAt: time.Now()}
}

func (s *ChatSession) HasFlow() bool {
	return s != nil && s.Flow != nil
}

func (s *ChatSession) HasPendingOcr() bool {
	return s != nil && len(s.PendingOcr) > 0
}

// Clone returns a deep copy so stored sessions are not shared with callers.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.Flow != nil {
		flow := *s.Flow
		out.Flow = &flow
	}
	if s.PendingOcr != nil {
		out.PendingOcr = append([]ParsedMedicine(nil), s.PendingOcr...)
	}
	return &out
}
