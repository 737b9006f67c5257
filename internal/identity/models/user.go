// Package models holds the identity domain types.
package models

import "time"

// User is a citizen account held by this operator. Credentials are managed
// by the auth platform, not here; a transferred-in citizen gets a one-time
// password that is delivered by mail and never persisted.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
