package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrDocumentNotFound is returned by document stores when an update targets
// an id that does not exist in the collection.
var ErrDocumentNotFound = errors.New("document not found")

// Document is one record of a collection as seen by the document store.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Fields     json.RawMessage `json:"fields"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// User is a registered account of the identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
