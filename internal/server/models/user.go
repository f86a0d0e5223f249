// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a writer known to the system. ExternalID is the identity provider's
// stable subject; RefreshCredential is stored sealed and may be nil.
type User struct {
	ID                string    `db:"id"`
	ExternalID        string    `db:"external_id"`
	RefreshCredential []byte    `db:"refresh_credential"`
	DateCreated       time.Time `db:"date_created"`
}
