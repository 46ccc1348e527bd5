package auth

import (
	"regexp"
	"sort"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	digitPattern    = regexp.MustCompile(`\d`)
	letterPattern   = regexp.MustCompile(`[a-zA-Z]`)
)

// bcrypt ignores input past 72 bytes, so longer passwords are refused.
const maxPasswordBytes = 72

// FieldErrors maps a form field to its first validation message.
type FieldErrors map[string]string

// ValidationError is returned when form input is rejected.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "auth: invalid input: " + strings.Join(parts, "; ")
}

func (f FieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// Sanitize trims input and strips angle brackets.
func Sanitize(s string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(s))
}

func ValidateUsername(username string) string {
	switch {
	case strings.TrimSpace(username) == "":
		return "Username is required"
	case len(username) < 3:
		return "Username must be at least 3 characters long"
	case len(username) > 20:
		return "Username must be less than 20 characters"
	case !usernamePattern.MatchString(username):
		return "Username can only contain letters, numbers, underscores, and hyphens"
	}
	return ""
}

func ValidateEmail(email string) string {
	switch {
	case strings.TrimSpace(email) == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	case len(email) > 100:
		return "Email is too long"
	}
	return ""
}

func ValidatePassword(password string) string {
	switch {
	case password == "":
		return "Password is required"
	case len(password) < 8:
		return "Password must be at least 8 characters long"
	case len(password) > maxPasswordBytes:
		return "Password is too long"
	case !digitPattern.MatchString(password):
		return "Password must contain at least one number"
	case !letterPattern.MatchString(password):
		return "Password must contain at least one letter"
	}
	return ""
}

// ValidateSignup checks every signup field and collects all failures.
func ValidateSignup(username, email, password string) FieldErrors {
	errs := FieldErrors{}
	if msg := ValidateUsername(username); msg != "" {
		errs["username"] = msg
	}
	if msg := ValidateEmail(email); msg != "" {
		errs["email"] = msg
	}
	if msg := ValidatePassword(password); msg != "" {
		errs["password"] = msg
	}
	return errs
}

// ValidateLogin only checks presence.
func ValidateLogin(username, password string) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(username) == "" {
		errs["username"] = "Username is required"
	}
	if password == "" {
		errs["password"] = "Password is required"
	}
	return errs
}
