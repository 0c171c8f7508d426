package screens

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/GigBid/internal/models"
)

// ValidationError is a form input rejected before any API call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, fmt.Sprintf("%s is required.", strings.ToUpper(field[:1])+field[1:]))
	}
	return nil
}

// ParseAmount parses a bid amount, which must be a number greater than 0.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, invalid("amount", "Please enter a valid bid amount greater than 0.")
	}
	return v, nil
}

// ParseBudget parses the budget range of a new project.
func ParseBudget(minStr, maxStr string) (float64, float64, error) {
	lo, err := strconv.ParseFloat(strings.TrimSpace(minStr), 64)
	if err != nil || lo < 0 {
		return 0, 0, invalid("budgetMin", "Minimum budget must be a number of at least 0.")
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(maxStr), 64)
	if err != nil {
		return 0, 0, invalid("budgetMax", "Maximum budget must be a number.")
	}
	if hi < lo {
		return 0, 0, invalid("budgetMax", "Maximum budget must not be less than the minimum.")
	}
	return lo, hi, nil
}

// ParseDeadline checks a YYYY-MM-DD deadline that is not before today.
func ParseDeadline(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	d, err := time.ParseInLocation(time.DateOnly, s, now.Location())
	if err != nil {
		return "", invalid("deadline", "Deadline must be a date in YYYY-MM-DD format.")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Before(today) {
		return "", invalid("deadline", "Deadline must not be in the past.")
	}
	return s, nil
}

// ParseBidID parses the id of the bid a buyer selects.
func ParseBidID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("bidId", "Invalid bid id.")
	}
	return id, nil
}

// ParseRole parses a signup role, case-insensitively.
func ParseRole(s string) (models.Role, error) {
	r := models.Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", invalid("role", "Role must be BUYER or SELLER.")
	}
	return r, nil
}

// CheckDeliverable makes sure path names a readable, non-empty regular file.
func CheckDeliverable(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, invalid("file", "Please choose a file to upload.")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, invalid("file", fmt.Sprintf("Cannot read %s.", path))
	}
	if !fi.Mode().IsRegular() {
		return nil, invalid("file", fmt.Sprintf("%s is not a regular file.", path))
	}
	if fi.Size() == 0 {
		return nil, invalid("file", fmt.Sprintf("%s is empty.", path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, invalid("file", fmt.Sprintf("Cannot read %s.", path))
	}
	return f, nil
}

func requireRole(id models.Identity, role models.Role, msg string) error {
	if id.Role != role {
		return invalid("role", msg)
	}
	return nil
}
