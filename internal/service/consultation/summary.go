package consultation

import (
	"fmt"
	"strings"

	"github.com/psicare/manager-api/internal/model"
)

// Sections are the clinical parts of a consultation in print order.
type Sections struct {
	Diagnosis  string
	Complaints string
	Evolution  string
	Medicines  []model.ConsultationMedicine
}

// ComposeSummary renders the non-empty sections as labelled blocks separated
// by a blank line. Stored sections are authoritative; the summary is only for
// printing and listing.
func ComposeSummary(s Sections) string {
	var blocks []string
	if strings.TrimSpace(s.Diagnosis) != "" {
		blocks = append(blocks, "Diagnóstico: "+s.Diagnosis)
	}
	if strings.TrimSpace(s.Complaints) != "" {
		blocks = append(blocks, "Queixas: "+s.Complaints)
	}
	if strings.TrimSpace(s.Evolution) != "" {
		blocks = append(blocks, "Evolução: "+s.Evolution)
	}
	if len(s.Medicines) > 0 {
		lines := make([]string, len(s.Medicines))
		for i, m := range s.Medicines {
			lines[i] = fmt.Sprintf("• %s (%s, %s)", m.Name, m.Dosage, m.Frequency)
		}
		blocks = append(blocks, "[Prescrição]\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
