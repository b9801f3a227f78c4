package utils

import "strings"

// TrimToNil returns nil for empty or whitespace-only input and a pointer to the
// trimmed value otherwise, so an omitted field and an explicitly blank one both
// persist as NULL.
func TrimToNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}

// DerefOrEmpty is the inverse of TrimToNil for response mapping.
func DerefOrEmpty(value *string) string {
	if value == nil {
		return ""
	}

	return *value
}
