package domain

import (
	"strings"
	"time"
)

// MaxBioLength bounds the free-text profile bio.
const MaxBioLength = 1000

// User is the persisted account record. It carries no authorization logic;
// authorities are derived from Roles with AuthoritiesFor.
type User struct {
	ID                  int64               `json:"id"`
	Email               string              `json:"email"`
	PasswordHash        string              `json:"-"`
	FirstName           string              `json:"firstName"`
	LastName            string              `json:"lastName"`
	Enabled             bool                `json:"enabled"`
	Locked              bool                `json:"locked"`
	Roles               []RoleName          `json:"roles"`
	ProfileImageURL     string              `json:"profileImageUrl,omitempty"`
	Bio                 string              `json:"bio,omitempty"`
	AdoptionPreferences AdoptionPreferences `json:"adoptionPreferences"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Authorities returns the authority set granted by the user's roles.
func (u *User) Authorities() []string {
	return AuthoritiesFor(u.Roles)
}

// AdoptionPreferences describes what a prospective adopter is looking for.
// It is stored as JSON on the user row and fed to the matching service.
type AdoptionPreferences struct {
	Lifestyle   string `json:"lifestyle,omitempty"`
	Experience  string `json:"experience,omitempty"`
	LivingSpace string `json:"living_space,omitempty"`
	Preferences string `json:"preferences,omitempty"`
}

// IsEmpty reports whether no preference has been filled in.
func (p AdoptionPreferences) IsEmpty() bool {
	return p == AdoptionPreferences{}
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
