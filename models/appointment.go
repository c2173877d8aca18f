package models

import "time"

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

// Appointment is owned by the appointments store. Datetime is kept as the
// string the caller supplied so rescheduled values round-trip unchanged.
type Appointment struct {
	ID         string            `bson:"_id" json:"id"`
	UserID     string            `bson:"user_id,omitempty" json:"user_id,omitempty"`
	UserEmail  string            `bson:"user_email,omitempty" json:"user_email,omitempty"`
	DoctorName string            `bson:"doctor_name" json:"doctor_name"`
	Datetime   string            `bson:"datetime" json:"datetime"`
	Reason     string            `bson:"reason,omitempty" json:"reason,omitempty"`
	Status     AppointmentStatus `bson:"status" json:"status"`
	CreatedAt  time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `bson:"updated_at" json:"updated_at"`
}

type NewAppointment struct {
	DoctorName string
	Datetime   string
	Reason     string
}

// AppointmentUpdate carries the fields to change; nil fields are left alone.
type AppointmentUpdate struct {
	Datetime *string
	Status   *AppointmentStatus
}
