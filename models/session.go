package models

import "time"

// SessionState is a serialisable snapshot of an authenticated browser: its
// cookies plus the localStorage of the origins visited at snapshot time.
// Callers treat it as opaque.
type SessionState struct {
	Cookies   []Cookie        `json:"cookies"`
	Origins   []OriginStorage `json:"origins"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Cookie mirrors the fields needed to replay a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// OriginStorage holds the localStorage entries of one origin.
type OriginStorage struct {
	Origin       string            `json:"origin"`
	LocalStorage map[string]string `json:"localStorage"`
}
