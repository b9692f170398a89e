package patient

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/psicare/manager-api/internal/model"
)

const msgPractitionerRequired = "a responsible practitioner must be selected"

// normalize trims the free-text fields so blank input fails Required.
func normalize(req *model.PatientRequest) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Diagnosis = strings.TrimSpace(req.Diagnosis)
	req.Email = strings.TrimSpace(req.Email)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
}

func validatePatient(req *model.PatientRequest, caller *model.Principal) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.FullName, validation.Required),
		validation.Field(&req.DateOfBirth, validation.Required, validation.By(civilDate)),
		validation.Field(&req.Phone, validation.Required),
		validation.Field(&req.Diagnosis, validation.When(!caller.Role.IsAssistant(), validation.Required)),
		validation.Field(&req.Email, is.EmailFormat),
		validation.Field(&req.Status, validation.In(model.PatientStatusActive, model.PatientStatusInactive)),
		validation.Field(&req.ProfessionalID,
			validation.When(caller.MustChoosePractitioner(), validation.Required.Error(msgPractitionerRequired)),
			is.UUID,
		),
	)
}

func validateMedication(req *model.MedicationRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Stock, validation.Min(0)),
		validation.Field(&req.StartDate, validation.By(civilDate)),
		validation.Field(&req.EndDate, validation.By(civilDate)),
	)
}

func civilDate(value interface{}) error {
	s, _ := value.(string)
	_, err := model.ParseDate(s)
	return err
}
