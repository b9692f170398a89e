package model

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Identity is an email/password credential plus the metadata attached at
// sign-up time.
type Identity struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Metadata     JSONMap   `json:"metadata" db:"metadata"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Profile is the display record of a practitioner, assistant or administrator.
// Its id equals the owning identity id. Profiles are never deleted.
type Profile struct {
	Base
	Name     string `json:"name" db:"name"`
	Role     string `json:"role" db:"role"`
	Email    string `json:"email" db:"email"`
	Phone    string `json:"phone" db:"phone"`
	CRM      string `json:"crm" db:"crm"`
	CPF      string `json:"cpf" db:"cpf"`
	PhotoURL string `json:"photo_url" db:"photo_url"`
}

// Principal resolves the typed caller identity carried by requests.
func (p *Profile) Principal() *Principal {
	return &Principal{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      ParseRole(p.Role),
		RoleLabel: p.Role,
	}
}

// AvatarURL derives the placeholder image used when no photo is provided.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role"`
	CPF      string `json:"cpf"`
	CRM      string `json:"crm"`
	Phone    string `json:"phone"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ProfileUpdateRequest struct {
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	CRM      string `json:"crm"`
	CPF      string `json:"cpf"`
	PhotoURL string `json:"photo_url"`
}

type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Principal   *Principal `json:"user"`
}
