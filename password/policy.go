package password

import (
	"fmt"
	"unicode"
)

// Policy is the strength requirement applied before hashing a new password.
type Policy struct {
	MinLength int
}

// Check returns a descriptive error when the password fails the policy.
// The check runs on the raw string, byte length first, so multi-byte
// passwords are not penalized.
func (p Policy) Check(password string) error {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = 8
	}

	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters", minLength)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}

	return nil
}
