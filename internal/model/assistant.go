package model

// Assistant is a flat directory entry with no link to patients.
type Assistant struct {
	Base
	FullName  string `json:"full_name" db:"full_name"`
	Specialty string `json:"specialty" db:"specialty"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone" db:"phone"`
	PhotoURL  string `json:"photo_url" db:"photo_url"`
}

type AssistantRequest struct {
	FullName  string `json:"full_name" binding:"required"`
	Specialty string `json:"specialty"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	PhotoURL  string `json:"photo_url"`
}
