package services

import (
	"context"
	"fmt"
	"strings"

	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/utils"
)

const (
	ocrEmptyReply        = "I couldn't read any text from the image. Please try again."
	ocrNoMedicinesLine   = "I could not clearly identify medicine lines.\n\n"
	ocrDisclaimer        = "Please confirm everything before saving. This scan is for convenience only and does not replace professional medical advice. "
	ocrConfirmHint       = "If this looks correct, type 'ADD MEDICINES' to create draft prescriptions from these lines, or 'CANCEL' if it is not correct."
	ocrManualHint        = "Because I could not clearly map medicines from this image, please add or update items manually in Dashboard → Prescriptions / Medications."
	ocrCancelledReply    = "Okay, I won't save any medicines from that scan. You can still add them manually in Dashboard → Prescriptions."
	ocrNoneCreatedReply  = "I couldn't create any draft prescriptions from this scan."
	ocrNothingStaged     = "There are no scanned medicines waiting to be saved. Use Scan prescription to upload an image first."
	ocrProvenancePrefix  = "Imported from OCR line: "
	ocrCreatedReplyFmt   = "I created %d draft prescription(s) from your scan. Please review them in Dashboard → Prescriptions before relying on them."
	ocrAddMedicinesInput = "ADD MEDICINES"
	ocrCancelInput       = "CANCEL"
)

// OcrCommand is a confirmation command for staged scan results.
type OcrCommand int

const (
	OcrCommandNone OcrCommand = iota
	OcrCommandAdd
	OcrCommandCancel
)

// ParseOcrCommand matches the literal commands case-insensitively.
func ParseOcrCommand(message string) OcrCommand {
	switch strings.ToUpper(strings.TrimSpace(message)) {
	case ocrAddMedicinesInput:
		return OcrCommandAdd
	case ocrCancelInput:
		return OcrCommandCancel
	}
	return OcrCommandNone
}

// OcrStaging is the result of processing one scan. Pending replaces any
// previously staged items; it is nil when nothing could be mapped.
type OcrStaging struct {
	Reply      string
	Pending    []models.ParsedMedicine
	Extraction models.OcrExtraction
	Empty      bool
}

type OcrService struct {
	prescriptions PrescriptionStore
}

func NewOcrService(prescriptions PrescriptionStore) *OcrService {
	return &OcrService{prescriptions: prescriptions}
}

// Stage splits the raw scan text and builds the confirmation summary.
func (s *OcrService) Stage(raw string) OcrStaging {
	if strings.TrimSpace(raw) == "" {
		return OcrStaging{Reply: ocrEmptyReply, Empty: true}
	}

	extraction := utils.ExtractMedicines(raw)

	var b strings.Builder
	if len(extraction.MedicineLines) > 0 {
		b.WriteString("Medicines I detected:\n")
		for i, line := range extraction.MedicineLines {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%d. %s", i+1, line)
		}
		b.WriteString("\n\n")
	} else {
		b.WriteString(ocrNoMedicinesLine)
	}

	if len(extraction.OtherLines) > 0 {
		b.WriteString("Other text on the prescription:\n")
		b.WriteString(strings.Join(extraction.OtherLines, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString(ocrDisclaimer)

	staging := OcrStaging{Extraction: extraction}
	if len(extraction.ParsedMedicines) > 0 {
		b.WriteString(ocrConfirmHint)
		staging.Pending = extraction.ParsedMedicines
	} else {
		b.WriteString(ocrManualHint)
	}
	staging.Reply = b.String()
	return staging
}

// Confirm saves each staged medicine as a Draft prescription owned by the
// caller. It returns the reply and the number of drafts created.
func (s *OcrService) Confirm(ctx context.Context, identity *models.Identity, pending []models.ParsedMedicine) (string, int) {
	if len(pending) == 0 {
		return ocrNothingStaged, 0
	}

	created := 0
	for _, med := range pending {
		_, err := s.prescriptions.Create(ctx, &models.Prescription{
			UserID:       identity.UserID,
			UserEmail:    identity.Email,
			MedicineName: med.MedicineName,
			Strength:     med.Strength,
			Notes:        ocrProvenancePrefix + med.OriginalLine,
			Status:       models.PrescriptionDraft,
		})
		if err != nil {
			utils.LoggerFromContext(ctx).Warn().Err(err).Msg("draft prescription create failed")
			continue
		}
		created++
	}

	if created == 0 {
		return ocrNoneCreatedReply, 0
	}
	return fmt.Sprintf(ocrCreatedReplyFmt, created), created
}

// Discard is the reply for dropping staged items. Nothing is persisted.
func (s *OcrService) Discard() string {
	return ocrCancelledReply
}
