package utils

import (
	"regexp"
	"strings"

	"medicose-chatbot-backend/models"
)

var (
	medicineLinePattern = regexp.MustCompile(`(?i)(mg|ml|tablet|\btab\b|capsule|\bcap\b)`)
	strengthPattern     = regexp.MustCompile(`(?i)^\d+(\.\d+)?(mg|ml)`)
)

// ExtractMedicines splits recognized prescription text into medicine lines
// and other lines, and reads a name and strength from each medicine line.
func ExtractMedicines(raw string) models.OcrExtraction {
	result := models.OcrExtraction{
		MedicineLines:   []string{},
		OtherLines:      []string{},
		ParsedMedicines: []models.ParsedMedicine{},
	}

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !IsMedicineLine(line) {
			result.OtherLines = append(result.OtherLines, line)
			continue
		}
		result.MedicineLines = append(result.MedicineLines, line)
		result.ParsedMedicines = append(result.ParsedMedicines, ParseMedicineLine(line))
	}

	return result
}

func IsMedicineLine(line string) bool {
	return medicineLinePattern.MatchString(line)
}

// ParseMedicineLine takes the first strength-like token as the strength and
// the first other token as the name. Without a strength token the whole line
// becomes the name.
func ParseMedicineLine(line string) models.ParsedMedicine {
	parsed := models.ParsedMedicine{OriginalLine: line}

	var firstOther string
	for _, token := range strings.Fields(line) {
		if parsed.Strength == "" && strengthPattern.MatchString(token) {
			parsed.Strength = token
			continue
		}
		if firstOther == "" {
			firstOther = token
		}
	}

	if parsed.Strength == "" || firstOther == "" {
		parsed.MedicineName = line
	} else {
		parsed.MedicineName = firstOther
	}
	return parsed
}
