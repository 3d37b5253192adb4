package codec

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/carmasterapp/car-master/internal/model"
)

const (
	DefaultPrefix = "CARMASTER"
	PayloadLength = 8
	payloadBytes  = PayloadLength / 2
	segmentCount  = 4
	separator     = "-"
)

var (
	ErrFormat            = errors.New("malformed code")
	ErrMalformedSegments = fmt.Errorf("%w: expected %d segments", ErrFormat, segmentCount)
	ErrPrefixMismatch    = fmt.Errorf("%w: unknown prefix", ErrFormat)
	ErrUnknownType       = fmt.Errorf("%w: unknown type tag", ErrFormat)
	ErrBadLength         = fmt.Errorf("%w: bad segment length", ErrFormat)
	ErrBadEncoding       = fmt.Errorf("%w: segment is not upper-case hex", ErrFormat)
)

// Parsed is a decoded code string in canonical upper-case form.
type Parsed struct {
	Prefix   string
	Tag      model.TypeTag
	Type     model.CodeType
	Payload  string
	Checksum string
}

// String re-assembles the canonical code string.
func (p Parsed) String() string {
	return strings.Join([]string{p.Prefix, string(p.Tag), p.Payload, p.Checksum}, separator)
}

// Codec holds the process-wide prefix and secret. It is safe for concurrent use.
type Codec struct {
	prefix string
	secret string
}

func New(prefix, secret string) *Codec {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Codec{prefix: prefix, secret: secret}
}

func (c *Codec) Prefix() string {
	return c.prefix
}

// Encode assembles a code for the given tag and payload.
func (c *Codec) Encode(tag model.TypeTag, payload string) string {
	checksum := ComputeTag(c.prefix, string(tag), payload, c.secret)
	return strings.Join([]string{c.prefix, string(tag), payload, checksum}, separator)
}

// Generate encodes a code with a fresh random payload.
func (c *Codec) Generate(t model.CodeType) (string, error) {
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	payload, err := randomPayload()
	if err != nil {
		return "", fmt.Errorf("read random payload: %w", err)
	}
	return c.Encode(t.Tag(), payload), nil
}

// Normalize is the canonical form used as the store key.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Decode parses a code string. Input is matched case-insensitively.
func (c *Codec) Decode(code string) (Parsed, error) {
	parts := strings.Split(Normalize(code), separator)
	if len(parts) != segmentCount {
		return Parsed{}, ErrMalformedSegments
	}

	prefix, tag, payload, checksum := parts[0], model.TypeTag(parts[1]), parts[2], parts[3]
	if prefix != c.prefix {
		return Parsed{}, ErrPrefixMismatch
	}

	typ, ok := model.TypeForTag(tag)
	if !ok {
		return Parsed{}, ErrUnknownType
	}

	if len(payload) != PayloadLength || len(checksum) != TagLength {
		return Parsed{}, ErrBadLength
	}
	if !isUpperHex(payload) || !isUpperHex(checksum) {
		return Parsed{}, ErrBadEncoding
	}

	return Parsed{
		Prefix:   prefix,
		Tag:      tag,
		Type:     typ,
		Payload:  payload,
		Checksum: checksum,
	}, nil
}

// Verify checks the checksum segment against the server secret.
func (c *Codec) Verify(p Parsed) bool {
	return VerifyTag(p.Prefix, string(p.Tag), p.Payload, c.secret, p.Checksum)
}

func randomPayload() (string, error) {
	b := make([]byte, payloadBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

func isUpperHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}
