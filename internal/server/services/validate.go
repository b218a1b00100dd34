package services

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
)

// MinPasswordLength is the shortest password accepted at sign-up and on
// password change.
const MinPasswordLength = 8

// bcrypt ignores input beyond 72 bytes and rejects it outright.
const maxPasswordBytes = 72

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func checkEmail(verr *common.ValidationError, field, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		verr.Add(field, "Email is required.")
	case !ValidEmail(strings.TrimSpace(email)):
		verr.Add(field, "Invalid email address.")
	}
}

func checkNewPassword(verr *common.ValidationError, field, confirmField, password, confirm string) {
	switch {
	case password == "":
		verr.Add(field, "Password is required.")
	case len([]rune(password)) < MinPasswordLength:
		verr.Add(field, "Password must be at least 8 characters.")
	case len(password) > maxPasswordBytes:
		verr.Add(field, "Password must be at most 72 bytes.")
	}
	if password != confirm {
		verr.Add(confirmField, "Passwords do not match.")
	}
}

func checkRequired(verr *common.ValidationError, field, value, msg string) {
	if strings.TrimSpace(value) == "" {
		verr.Add(field, msg)
	}
}
