package model

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of access levels a profile can hold.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RolePractitioner  Role = "practitioner"
	RoleAssistant     Role = "assistant"
)

// DefaultRoleLabel is stored on profiles created without an explicit role.
const DefaultRoleLabel = "Profissional"

// ParseRole maps a free-form profile role label onto a Role. Unknown labels
// (specialties such as "Psiquiatra") are practitioners.
func ParseRole(label string) Role {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "admin", "administrador", "administrator", "gestor":
		return RoleAdministrator
	case "assessor", "assistente", "assistant":
		return RoleAssistant
	default:
		return RolePractitioner
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RolePractitioner, RoleAssistant:
		return true
	}
	return false
}

func (r Role) IsAdministrator() bool { return r == RoleAdministrator }
func (r Role) IsAssistant() bool     { return r == RoleAssistant }

// Principal is the resolved caller identity carried through every request.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	RoleLabel string    `json:"role_label"`
}

// CanSeeAllPatients reports whether the visibility filter is lifted.
func (p *Principal) CanSeeAllPatients() bool {
	return p != nil && p.Role.IsAdministrator()
}

// MustChoosePractitioner reports whether a responsible practitioner has to be
// picked explicitly when registering a patient.
func (p *Principal) MustChoosePractitioner() bool {
	return p.Role == RoleAdministrator || p.Role == RoleAssistant
}
