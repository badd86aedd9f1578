package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var (
	ErrEmptyTOTPSecret     = errors.New("empty totp secret")
	ErrInvalidTOTPSecret   = errors.New("totp secret is not valid base32")
	ErrUnsupportedTOTPHash = errors.New("unsupported totp algorithm")
)

// TOTP verifies time-based one-time codes per RFC 6238 and builds
// otpauth:// provisioning URIs.
type TOTP struct {
	Issuer    string
	Digits    int
	Period    int    // seconds per time step
	Skew      int    // accepted steps either side of now
	Algorithm string // SHA1, SHA256 or SHA512
}

// DefaultTOTP returns the parameters every mainstream authenticator app
// supports out of the box.
func DefaultTOTP(issuer string) *TOTP {
	return &TOTP{
		Issuer:    issuer,
		Digits:    6,
		Period:    30,
		Skew:      1,
		Algorithm: "SHA1",
	}
}

// GenerateSecret mints a fresh 160-bit shared secret, base32-encoded
// without padding.
func (t *TOTP) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(raw), nil
}

// ProvisionURI returns the QR-encodable otpauth URI for an account.
func (t *TOTP) ProvisionURI(secret, account string) string {
	label := url.PathEscape(t.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", t.Issuer)
	v.Set("period", strconv.Itoa(t.Period))
	v.Set("digits", strconv.Itoa(t.Digits))
	v.Set("algorithm", strings.ToUpper(t.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Verify checks a code against the secret at the given time, accepting
// Skew steps of clock drift either way.
func (t *TOTP) Verify(secret, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != t.Digits || !isNumeric(trimmed) {
		return false, nil
	}

	if secret == "" {
		return false, ErrEmptyTOTPSecret
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	key, err := enc.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return false, ErrInvalidTOTPSecret
	}

	baseCounter := now.Unix() / int64(t.Period)
	for step := -t.Skew; step <= t.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(key, counter, t.Digits, t.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// CodeAt generates the code for a secret at a point in time. Test helper
// and enrollment preview.
func (t *TOTP) CodeAt(secret string, now time.Time) (string, error) {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	key, err := enc.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", ErrInvalidTOTPSecret
	}
	return hotpCode(key, now.Unix()/int64(t.Period), t.Digits, t.Algorithm)
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedTOTPHash
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
