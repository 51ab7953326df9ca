// Package domain contains core concepts of the conversation engine.
// No storage, network, or UI logic should be added here.
package domain

import "time"

// User is the local identity record. It is created or refreshed on every
// successful authentication against the identity provider and is never
// deleted by this subsystem.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Photo      string    `json:"photo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Identity is the resolved handle attached to an authenticated connection
// or request.
type Identity struct {
	LocalID    string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Photo      string `json:"photo,omitempty"`
}
