package utils

import "github.com/google/uuid"

// GenerateUUID returns a random RFC 4122 v4 identifier for track records.
func GenerateUUID() string {
	return uuid.NewString()
}

// IsValidUUID reports whether s parses as a UUID.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
