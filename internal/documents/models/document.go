// Package models holds the document domain types.
package models

import "time"

// Document is the metadata record for one stored object. Key addresses the
// object in the storage backend; bytes never live in the database.
type Document struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
