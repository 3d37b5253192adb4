// Package codec builds and parses premium code strings of the form
// PREFIX-TAG-RANDOM-CHECK, where CHECK binds the first three segments to a
// server-side secret.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/carmasterapp/car-master/internal/util"
)

const TagLength = 4

// ComputeTag returns the first four hex characters, upper-cased, of
// sha256("prefix-typeTag-payload-secret").
func ComputeTag(prefix, typeTag, payload, secret string) string {
	sum := sha256.Sum256([]byte(prefix + "-" + typeTag + "-" + payload + "-" + secret))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:TagLength])
}

// VerifyTag reports whether candidate is exactly the tag for the given segments.
func VerifyTag(prefix, typeTag, payload, secret, candidate string) bool {
	return util.ConstantTimeEqual(ComputeTag(prefix, typeTag, payload, secret), candidate)
}
