package utils

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// SanitizeIdentifier trims a device type or id and drops control characters.
// Identifiers are stored verbatim otherwise, so no escaping happens here.
func SanitizeIdentifier(input string) string {
	return removeControlChars(strings.TrimSpace(input))
}

// SanitizeEmail sanitizes email input
func SanitizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	email = stripHTML(email)
	return removeControlChars(email)
}

func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// ValidateAndSanitizeEmail validates and sanitizes email
func ValidateAndSanitizeEmail(email string) (string, error) {
	sanitized := SanitizeEmail(email)
	if !IsValidEmail(sanitized) {
		return "", fmt.Errorf("invalid email format")
	}
	return sanitized, nil
}

func stripHTML(input string) string {
	return htmlTag.ReplaceAllString(input, "")
}

func removeControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == ' ' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
