package sms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhone is returned by NormalizePhone.
var ErrInvalidPhone = errors.New("invalid phone number")

// defaultRegion applies to numbers entered without a country code.
const defaultRegion = "US"

// NormalizePhone converts user input into E.164. Numbers without a leading
// + are read as US numbers. The number must have a possible length for its
// country; local-only (no area code) numbers are rejected.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	// phonenumbers maps vanity letters to digits; SMS recipients must be numeric.
	if s == "" || strings.IndexFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.() ", r)
	}) >= 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}

	num, err := phonenumbers.Parse(s, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhone, raw, err)
	}
	if phonenumbers.IsPossibleNumberWithReason(num) != phonenumbers.IS_POSSIBLE {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
