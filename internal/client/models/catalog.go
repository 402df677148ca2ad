package models

// Severity groups lesion classes by how urgently they need attention.
type Severity string

const (
	SeverityBenign  Severity = "benign"
	SeverityMonitor Severity = "monitor"
	SeverityUrgent  Severity = "urgent"
	SeverityUnknown Severity = "unknown"
)

// LesionInfo is the static display text for a predicted class.
type LesionInfo struct {
	Label          string
	Layman         string
	Description    string
	Recommendation string
	Severity       Severity
}

var lesionCatalog = map[string]LesionInfo{
	"nv": {
		Label:          "nv",
		Layman:         "Common mole",
		Description:    "Benign (non-cancerous) mole composed of melanocytes. These are usually harmless but should still be monitored for changes.",
		Recommendation: "Regular monitoring. No immediate concern unless it changes shape, color, or size.",
		Severity:       SeverityMonitor,
	},
	"mel": {
		Label:          "mel",
		Layman:         "Skin cancer (malignant)",
		Description:    "A dangerous form of skin cancer that originates in melanocytes. Can spread quickly if untreated.",
		Recommendation: "Seek a dermatologist immediately for further examination and biopsy.",
		Severity:       SeverityUrgent,
	},
	"bkl": {
		Label:          "bkl",
		Layman:         "Non-cancerous skin growths (like seborrheic keratosis)",
		Description:    "Often warty or scaly patches. These are benign but sometimes mimic cancer visually.",
		Recommendation: "Safe in most cases, but consult a specialist if unsure or if it changes.",
		Severity:       SeverityMonitor,
	},
	"bcc": {
		Label:          "bcc",
		Layman:         "A common type of skin cancer",
		Description:    "Slow-growing cancer that typically appears as a translucent or pearly bump. Rarely spreads but can damage local tissue.",
		Recommendation: "Consult a dermatologist for treatment. Usually curable with early intervention.",
		Severity:       SeverityUrgent,
	},
	"akiec": {
		Label:          "akiec",
		Layman:         "Precancerous skin lesion",
		Description:    "Rough, scaly patches caused by sun damage. Can progress to squamous cell carcinoma if untreated.",
		Recommendation: "Dermatological evaluation needed to prevent progression.",
		Severity:       SeverityUrgent,
	},
	"df": {
		Label:          "df",
		Layman:         "Benign fibrous nodule",
		Description:    "Firm, often dark bumps typically found on the legs. Harmless.",
		Recommendation: "No treatment required unless symptomatic.",
		Severity:       SeverityBenign,
	},
	"vasc": {
		Label:          "vasc",
		Layman:         "Blood vessel lesions (like angiomas or hemangiomas)",
		Description:    "Bright red, purple, or bluish spots caused by blood vessels. Usually benign.",
		Recommendation: "Harmless, but monitor if size or color changes.",
		Severity:       SeverityBenign,
	},
}

// LesionLabels lists the known classes in display order.
var LesionLabels = []string{"nv", "mel", "bkl", "bcc", "akiec", "df", "vasc"}

// LookupLesion returns the display text for label. Unknown labels get a
// generic entry advising a professional consultation.
func LookupLesion(label string) LesionInfo {
	if info, ok := lesionCatalog[label]; ok {
		return info
	}
	return LesionInfo{
		Label:          label,
		Layman:         "Unknown",
		Description:    "No specific information available for this diagnosis.",
		Recommendation: "Please consult a healthcare professional.",
		Severity:       SeverityUnknown,
	}
}
