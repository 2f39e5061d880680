package gateway

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ttacon/libphonenumber"
)

const (
	countryPrefix = "254"
	defaultRegion = "KE"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")

	nonDigits = regexp.MustCompile(`\D`)
)

// NormalizePhone converts a local or international Kenyan number to the
// 2547XXXXXXXX form the gateway expects. Applying it twice is a no-op.
func NormalizePhone(phone string) (string, error) {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(digits, countryPrefix):
	case strings.HasPrefix(digits, "0"):
		digits = countryPrefix + digits[1:]
	default:
		digits = countryPrefix + digits
	}

	num, err := libphonenumber.Parse("+"+digits, defaultRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}

	return strings.TrimPrefix(libphonenumber.Format(num, libphonenumber.E164), "+"), nil
}
