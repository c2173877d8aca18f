package models

import "time"

type PrescriptionStatus string

const (
	PrescriptionActive  PrescriptionStatus = "Active"
	PrescriptionPending PrescriptionStatus = "Pending"
	PrescriptionDraft   PrescriptionStatus = "Draft"
)

type Prescription struct {
	ID           string             `bson:"_id" json:"id"`
	UserID       string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	UserEmail    string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	MedicineName string             `bson:"medicine_name" json:"medicine_name"`
	Strength     string             `bson:"strength,omitempty" json:"strength,omitempty"`
	Dosage       string             `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Duration     string             `bson:"duration,omitempty" json:"duration,omitempty"`
	Doctor       string             `bson:"doctor,omitempty" json:"doctor,omitempty"`
	Notes        string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Status       PrescriptionStatus `bson:"status" json:"status"`
	RefillCount  int                `bson:"refill_count" json:"refill_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
