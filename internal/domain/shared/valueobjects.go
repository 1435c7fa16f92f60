package shared

import (
	"strings"
	"unicode/utf8"
)

// MaxUserIDLength bounds principal identifiers accepted from the auth layer.
const MaxUserIDLength = 128

// UserID is the opaque, already-authenticated principal that owns aggregates and achievements.
type UserID string

// IsValid checks that the ID is non-blank and bounded.
func (u UserID) IsValid() bool {
	s := string(u)
	return strings.TrimSpace(s) != "" && utf8.RuneCountInString(s) <= MaxUserIDLength
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID validates and returns a UserID.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", ErrInvalidUserID
	}
	return u, nil
}
