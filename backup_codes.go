package authcore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// backupCodeAlphabet excludes visually ambiguous characters (0/O, 1/I/L).
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// FormatBackupCode inserts a dash at the midpoint of a backup code for
// display. Codes shorter than 8 characters are returned unchanged.
func FormatBackupCode(code string) string {
	if len(code) < 8 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode uppercases a user-supplied backup code and strips
// dashes and spaces, reversing any display formatting.
func CanonicalizeBackupCode(code string) string {
	upper := strings.ToUpper(strings.TrimSpace(code))
	upper = strings.ReplaceAll(upper, "-", "")
	return strings.ReplaceAll(upper, " ", "")
}

// backupCodeHash binds the code to its owner so identical codes issued to
// different users never share a stored hash. The NUL byte separates the two
// inputs unambiguously.
func backupCodeHash(userID, canonicalCode string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(canonicalCode))
	return hex.EncodeToString(h.Sum(nil))
}

func generateBackupCodes(userID string, count, length int) (plaintext []string, hashes []string, err error) {
	plaintext = make([]string, 0, count)
	hashes = make([]string, 0, count)

	for i := 0; i < count; i++ {
		code, err := newBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		plaintext = append(plaintext, FormatBackupCode(code))
		hashes = append(hashes, backupCodeHash(userID, code))
	}

	return plaintext, hashes, nil
}
