package utils

import (
	"regexp"
	"strings"

	"medicose-chatbot-backend/models"
)

// DiseaseGuide is a navigational reply for a family of symptom keywords.
// It points to app features only and never carries clinical advice.
type DiseaseGuide struct {
	Keywords []string
	Text     string
}

var diseaseGuides = []DiseaseGuide{
	{
		Keywords: []string{"cold", "cough", "runny nose", "sore throat", "sneezing", "flu"},
		Text:     "For common cold or cough-like symptoms, MediCose helps you keep track of any medicines or syrups your doctor has prescribed. Use Dashboard → Prescriptions and Dashboard → Medications to see what you are taking, and Dashboard → Appointments or Video Consultation to speak with a doctor if symptoms persist or worsen. For breathing difficulty, chest pain, or very high fever, please seek urgent medical care.",
	},
	{
		Keywords: []string{"fever", "temperature", "high temp", "high temperature"},
		Text:     "For fever, MediCose can help you keep track of any medicines your doctor prescribes and when you took them. Use Dashboard → Prescriptions and Dashboard → Medications to see what you are taking, and Dashboard → Appointments or Video Consultation to book or follow up with a doctor. For high or persistent fever, or if you feel very unwell, please contact a doctor or emergency services immediately.",
	},
	{
		Keywords: []string{"diabetes", "sugar", "type 2"},
		Text:     "For diabetes, you can use this app to keep medicines and refills organized. Track your diabetes prescriptions in Dashboard → Prescriptions, set up refills in Dashboard → Refills, and schedule regular follow‑ups in Dashboard → Appointments. Always discuss dose changes and targets with your doctor.",
	},
	{
		Keywords: []string{"bp", "blood pressure", "hypertension"},
		Text:     "For high blood pressure, you can use MediCose to stay on top of tablets and refills. Keep your BP medicines listed under Dashboard → Prescriptions / Medications, request refills through Dashboard → Refills, and book reviews in Dashboard → Appointments. For urgent symptoms (chest pain, severe headache, breathlessness), seek emergency care immediately.",
	},
	{
		Keywords: []string{"asthma", "inhaler", "wheezing"},
		Text:     "For asthma, this app helps you track inhalers and preventer medicines. Store your asthma prescriptions under Dashboard → Prescriptions, watch refill dates in Dashboard → Refills, and book check‑ins via Dashboard → Appointments. If you have severe breathing trouble, use your action plan and contact emergency services.",
	},
	{
		Keywords: []string{"heart failure", "cardiac", "heart problem"},
		Text:     "For heart‑related conditions, keep all heart medicines and refills clearly listed in Dashboard → Prescriptions and Refills, and schedule close follow‑up through Dashboard → Appointments. This app only tracks meds and visits – treatment decisions must be made with your cardiologist.",
	},
}

// DiseaseGuides returns the guides in match order.
func DiseaseGuides() []DiseaseGuide {
	out := make([]DiseaseGuide, len(diseaseGuides))
	copy(out, diseaseGuides)
	return out
}

type intentRule struct {
	intent   models.MessageIntent
	keywords []string
}

// Classification is the result of classifying one message. Guide is set
// only for symptom.navigation.
type Classification struct {
	Intent models.MessageIntent
	Guide  *DiseaseGuide
}

type IntentClassifier struct {
	guides []DiseaseGuide
	rules  []intentRule
}

// NewIntentClassifier builds the classifier with its rules in priority order.
// The first matching rule wins, so the more specific rules come first.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		guides: DiseaseGuides(),
		rules: []intentRule{
			{models.IntentAppointmentCreate, []string{"appointment", "schedule", "visit", "doctor visit"}},
			{models.IntentPrescriptionView, []string{"prescription", "rx", "medication", "medicine", "tablet", "pill"}},
			{models.IntentRefillRequest, []string{"refill", "refills", "top up", "renew"}},
			{models.IntentOrderTrack, []string{"order history", "track order", "tracking", "delivery status"}},
			{models.IntentOrderShop, []string{"order", "cart", "shop", "buy"}},
			{models.IntentProfileSettings, []string{"profile", "account", "setting", "settings", "notification", "alert"}},
			{models.IntentRoleInfo, []string{"doctor", "pharmacist", "admin"}},
			{models.IntentEmergencyInfo, []string{"emergency", "urgent"}},
			{models.IntentHelpGeneral, []string{"help", "feature", "how", "what can you do"}},
		},
	}
}

// Classify maps a message to exactly one intent. Symptom keywords are
// checked before every other rule.
func (ic *IntentClassifier) Classify(message string) Classification {
	message = strings.ToLower(strings.TrimSpace(message))

	for i := range ic.guides {
		if containsAnyKeyword(message, ic.guides[i].Keywords) {
			guide := ic.guides[i]
			return Classification{Intent: models.IntentSymptomNavigation, Guide: &guide}
		}
	}

	for _, rule := range ic.rules {
		if containsAnyKeyword(message, rule.keywords) {
			return Classification{Intent: rule.intent}
		}
	}

	return Classification{Intent: models.IntentUnknown}
}

// SupportedIntents lists every intent the classifier can return.
func (ic *IntentClassifier) SupportedIntents() []models.MessageIntent {
	intents := []models.MessageIntent{models.IntentSymptomNavigation}
	for _, rule := range ic.rules {
		intents = append(intents, rule.intent)
	}
	return append(intents, models.IntentUnknown)
}

var (
	bookingPhrases = []string{"appointment", "book doctor", "see doctor", "consult doctor"}
	bookWord       = regexp.MustCompile(`\bbook\b`)
	doctorWord     = regexp.MustCompile(`\bdoctor\b`)
)

// DetectLocalIntent recognizes direct booking requests that skip the
// response generator and open the booking flow.
func DetectLocalIntent(message string) (models.MessageIntent, bool) {
	message = strings.ToLower(strings.TrimSpace(message))
	if containsAnyKeyword(message, bookingPhrases) {
		return models.IntentAppointmentBook, true
	}
	if bookWord.MatchString(message) && doctorWord.MatchString(message) {
		return models.IntentAppointmentBook, true
	}
	return "", false
}

func containsAnyKeyword(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
