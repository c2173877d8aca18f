package services

import (
	"context"
	"fmt"

	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/utils"

	"github.com/rs/zerolog/log"
)

const (
	symptomDisclaimer = " Remember: MediCose is for tracking medications and visits, not for diagnosis or emergency care."
	supportOfferLine  = "\n\nWould you like me to connect you with support?"
)

var roleIntros = map[models.Role]string{
	models.RoleDoctor:     "You're logged in as a doctor. I can guide you to tools for managing patients, prescriptions, and clinical workflows.",
	models.RolePharmacist: "You're logged in as a pharmacist. I can help you reach dispense, verification, and refill approval workflows.",
	models.RoleAdmin:      "You're logged in as an admin. I can point you to dashboards to oversee users and activity.",
	models.RoleUser:       "You're logged in as a patient. I can help you find prescriptions, refills, orders, and appointments.",
}

// RoleIntro returns the one-line role introduction, defaulting to User.
func RoleIntro(role models.Role) string {
	if intro, ok := roleIntros[role]; ok {
		return intro
	}
	return roleIntros[models.RoleUser]
}

// roleVariants holds per-role texts for an intent. Roles without an entry
// get the default text.
type roleVariants struct {
	byRole      map[models.Role]string
	defaultText string
}

func (v roleVariants) forRole(role models.Role) string {
	if text, ok := v.byRole[role]; ok {
		return text
	}
	return v.defaultText
}

var cannedReplies = map[models.MessageIntent]roleVariants{
	models.IntentAppointmentCreate: {
		byRole: map[models.Role]string{
			models.RoleDoctor:     "As a doctor, use the Doctor Dashboard → Appointments to review your patient schedule, join video visits, and manage follow‑ups. Patients can use Dashboard → Appointments to book or reschedule their own visits.",
			models.RolePharmacist: "As a pharmacist, you’ll mostly see appointments when they relate to prescription reviews. Patients can book and manage visits from Dashboard → Appointments, and doctors manage their schedules from the Doctor Dashboard.",
			models.RoleAdmin:      "As an admin, you can oversee overall appointment activity from the Admin / reporting dashboards, while patients use Dashboard → Appointments and doctors manage their schedules from the Doctor Dashboard.",
		},
		defaultText: "Appointments: Use Dashboard → Appointments to book, reschedule, or cancel visits. For virtual care, open Dashboard → Video Consultation to join or schedule online sessions.",
	},
	models.IntentPrescriptionView: {
		byRole: map[models.Role]string{
			models.RoleDoctor:     "As a doctor, use the Doctor Dashboard → Prescriptions to review and issue scripts for patients. Patients see their own prescriptions under Dashboard → Prescriptions and active medicines under Dashboard → Medications.",
			models.RolePharmacist: "As a pharmacist, use the Pharmacist Dashboard to verify and dispense prescriptions that patients submit. Patients can review their scripts under Dashboard → Prescriptions and medications under Dashboard → Medications.",
			models.RoleAdmin:      "As an admin, you typically audit prescriptions through reporting views. Individual users see their prescriptions in Dashboard → Prescriptions and medicines in Dashboard → Medications.",
		},
		defaultText: "Prescriptions & medications: Use Dashboard → Prescriptions to upload and track scripts (including refills and expiry), and Dashboard → Medications to review your active medicines and how you're taking them. For privacy, I won’t list specific medicine names here in chat – open your dashboard to see full prescription details.",
	},
	models.IntentRefillRequest: {
		byRole: map[models.Role]string{
			models.RoleDoctor:     "As a doctor, you may see refill requests routed to you for approval via the Doctor Dashboard or related workflows. Patients request refills from Dashboard → Prescriptions and track them in Dashboard → Refills.",
			models.RolePharmacist: "As a pharmacist, manage refill queues and approvals from the Pharmacist Dashboard. Patients submit refills from Dashboard → Prescriptions and track progress in Dashboard → Refills.",
			models.RoleAdmin:      "As an admin, you usually monitor refill volumes and performance in reporting views. Patients request refills from Dashboard → Prescriptions and track them under Dashboard → Refills.",
		},
		defaultText: "Refills: From Dashboard → Prescriptions, click the Refill action next to a medicine to request more. Then monitor status and delivery expectations in Dashboard → Refills.",
	},
	models.IntentOrderTrack: {
		byRole: map[models.Role]string{
			models.RolePharmacist: "As a pharmacist, you track and update order preparation and dispensing from the Pharmacist Dashboard, while patients see their order history and statuses in Dashboard → Orders.",
			models.RoleAdmin:      "As an admin, you mainly monitor overall order volume and status trends. Individual patients can open Dashboard → Orders or Order History to see their own delivery status and tracking details.",
		},
		defaultText: "Order tracking & history: After placing an order from the Shop/Cart, open Dashboard → Orders or the Order History view to see statuses, delivery windows, and tracking details.",
	},
	models.IntentOrderShop: {
		byRole: map[models.Role]string{
			models.RolePharmacist: "As a pharmacist, you don’t usually place retail orders here; instead you manage dispensing and inventory via the Pharmacist Dashboard. Patients can browse medicines in the Shop, add them to Cart, and then review orders in Dashboard → Orders.",
			models.RoleAdmin:      "As an admin, you mostly oversee order activity in aggregate. End users can browse medicines in the Shop, add them to their Cart, check out, and then see their orders in Dashboard → Orders.",
		},
		defaultText: "Orders & Shop: Browse medicines in the Shop, add them to your Cart, then proceed to checkout to place an order. You can review past and current orders in Dashboard → Orders.",
	},
	models.IntentProfileSettings: {
		byRole: map[models.Role]string{
			models.RoleDoctor:     "As a doctor, keep your professional details updated in Profile, and adjust notification and availability preferences in Settings. Patients and pharmacists do the same in their own dashboards.",
			models.RolePharmacist: "As a pharmacist, use Profile to keep your contact and workplace details up to date, and Settings to manage notifications and workflow preferences.",
			models.RoleAdmin:      "As an admin, you can update your own profile and also manage certain system-level preferences, while users adjust their own Profile, Settings, and Notifications in their dashboards.",
		},
		defaultText: "Profile & preferences: Use Dashboard → Profile to update your basic details, Dashboard → Settings to control preferences (like theme or privacy), and Dashboard → Notifications to review health and medication alerts.",
	},
	models.IntentRoleInfo: {
		defaultText: "Role dashboards: Doctors use the Doctor Dashboard for patient lists, clinical prescriptions, and approvals. Pharmacists use the Pharmacist Dashboard for dispensing, inventory, and refill queues. Admins oversee users and system activity via the Admin Dashboard.",
	},
	models.IntentEmergencyInfo: {
		defaultText: "Emergency: This app is for tracking medications and prescriptions only. For emergencies, contact local emergency services or visit the nearest hospital immediately.",
	},
	models.IntentHelpGeneral: {
		defaultText: "I can help you navigate appointments, prescriptions, refills, medications, orders, video consultation, notifications, and role-based dashboards (Doctor, Pharmacist, Admin). Ask me about any of these and I'll guide you to the right place.",
	},
}

const unknownReply = "I'm not sure what you want yet. You can book an appointment, check prescriptions, request a refill, or track your orders inside MediCose. Try something like 'Book appointment', 'Show my prescriptions', or 'Track my last order'."

// CannedReply is the deterministic reply for an intent and role.
type CannedReply struct {
	Text           string
	SupportOffered bool
}

// RefinedReply is the final text after the optional completion step.
type RefinedReply struct {
	Text                   string
	SupportOffered         bool
	UsedExternalCompletion bool
}

type ResponseGenerator struct {
	orders    OrderStore
	completer Completer
}

func NewResponseGenerator(orders OrderStore, completer Completer) *ResponseGenerator {
	if completer == nil {
		completer = NoopCompleter{}
	}
	return &ResponseGenerator{orders: orders, completer: completer}
}

// Generate returns the canned reply for the intent. Only order.track reads
// from a store; a failed lookup drops the status line.
func (g *ResponseGenerator) Generate(ctx context.Context, intent models.MessageIntent, identity *models.Identity, guide *utils.DiseaseGuide) CannedReply {
	role := roleOf(identity)

	switch intent {
	case models.IntentSymptomNavigation:
		if guide == nil {
			return CannedReply{Text: unknownReply, SupportOffered: true}
		}
		return CannedReply{Text: guide.Text + symptomDisclaimer}
	case models.IntentOrderTrack:
		return CannedReply{Text: cannedReplies[intent].forRole(role) + g.latestOrderLine(ctx, identity)}
	}

	if variants, ok := cannedReplies[intent]; ok {
		return CannedReply{Text: variants.forRole(role)}
	}
	return CannedReply{Text: unknownReply, SupportOffered: true}
}

// Refine passes the canned reply to the completer unless the intent is
// safety sensitive. Without a completion the canned text is followed by the
// role intro.
func (g *ResponseGenerator) Refine(ctx context.Context, intent models.MessageIntent, question string, identity *models.Identity, lang models.Language, canned CannedReply) RefinedReply {
	role := roleOf(identity)
	out := RefinedReply{SupportOffered: canned.SupportOffered}

	result := Unavailable()
	if !intent.IsSafetySensitive() {
		result = g.completer.Complete(ctx, CompletionRequest{
			Question:   question,
			Role:       role,
			Language:   lang,
			Suggestion: canned.Text,
		})
	}

	if result.Available && result.Text != "" {
		out.Text = result.Text
		out.UsedExternalCompletion = true
	} else {
		out.Text = canned.Text + "\n\n" + RoleIntro(role)
	}

	if out.SupportOffered {
		out.Text += supportOfferLine
	}
	return out
}

func (g *ResponseGenerator) latestOrderLine(ctx context.Context, identity *models.Identity) string {
	if g.orders == nil || !identity.IsAuthenticated() {
		return ""
	}
	order, err := g.orders.FindMostRecent(ctx, identity)
	if err != nil {
		log.Warn().Err(err).Msg("chatbot order lookup failed")
		return ""
	}
	if order == nil {
		return ""
	}

	placed := "recently"
	if !order.CreatedAt.IsZero() {
		placed = order.CreatedAt.Format(utils.DisplayLayout)
	}
	return fmt.Sprintf(" For your most recent order (placed %s), the current status is \"%s\".", placed, order.DisplayStatus())
}

func roleOf(identity *models.Identity) models.Role {
	if identity == nil {
		return models.RoleUser
	}
	return models.NormalizeRole(string(identity.Role))
}
