package domain

import (
	"strings"
	"time"
)

// Identity is a person listings are attributed to. It is never mutated once
// issued.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

type ContactInfo struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=100"`
	Contact string `json:"contact" validate:"required,max=50"`
}

func (c ContactInfo) Normalize() ContactInfo {
	return ContactInfo{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Contact: strings.TrimSpace(c.Contact),
	}
}

func (c ContactInfo) Validate() error {
	return validateStruct(c)
}

func NewIdentity(id string, info ContactInfo, now time.Time) (Identity, error) {
	info = info.Normalize()
	if err := info.Validate(); err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:        id,
		Name:      info.Name,
		Email:     info.Email,
		Contact:   info.Contact,
		CreatedAt: now,
	}, nil
}
