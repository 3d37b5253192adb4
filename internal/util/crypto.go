package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	tokenBytes = 32
	bcryptCost = 12
)

func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// MaskCode keeps the prefix and type segments of a premium code and hides
// the rest, e.g. CARMASTER-DEMO-A1B2****-****.
func MaskCode(code string) string {
	parts := strings.Split(code, "-")
	if len(parts) != 4 || len(parts[2]) < 4 {
		if len(code) <= 4 {
			return "****"
		}
		return code[:4] + "-****"
	}
	return parts[0] + "-" + parts[1] + "-" + parts[2][:4] + "****-****"
}

func MaskDevice(deviceID string) string {
	if len(deviceID) <= 8 {
		return deviceID
	}
	return deviceID[:8] + "..."
}
