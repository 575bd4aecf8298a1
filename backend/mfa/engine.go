// Package mfa wraps github.com/pquerna/otp as the TOTP primitive of the
// service: SHA1, six digits, a 30 second step and one step of skew.
package mfa

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultIssuer = "ItsukiServer"
	DefaultQRSize = 200

	period     = 30
	skew       = 1
	secretSize = 20 // 160 bits, 32 base32 characters
)

var validateOpts = totp.ValidateOpts{
	Period:    period,
	Skew:      skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Key is a provisioned secret bound to an issuer and account.
type Key struct {
	key    *otp.Key
	qrSize int
}

// Secret returns the base32 secret without padding.
func (k *Key) Secret() string { return k.key.Secret() }

// URL returns the otpauth:// provisioning URI.
func (k *Key) URL() string { return k.key.URL() }

func (k *Key) Issuer() string { return k.key.Issuer() }

func (k *Key) AccountName() string { return k.key.AccountName() }

// PNG renders the provisioning URI as a QR code image.
func (k *Key) PNG() ([]byte, error) {
	img, err := k.key.Image(k.qrSize, k.qrSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Base64PNG returns PNG base64-encoded with the standard alphabet.
func (k *Key) Base64PNG() (string, error) {
	b, err := k.PNG()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Engine mints and checks TOTP secrets.
type Engine struct {
	Issuer string
	QRSize int
	// Rand is the entropy source for new secrets; nil means crypto/rand.
	Rand io.Reader
}

func NewEngine(issuer string, qrSize int) *Engine {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if qrSize <= 0 {
		qrSize = DefaultQRSize
	}
	return &Engine{Issuer: issuer, QRSize: qrSize}
}

func (e *Engine) generate(account string, secret []byte) (*Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.Issuer,
		AccountName: account,
		Period:      period,
		SecretSize:  secretSize,
		Secret:      secret,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        e.Rand,
	})
	if err != nil {
		return nil, err
	}
	return &Key{key: key, qrSize: e.QRSize}, nil
}

// Generate creates a new random secret for account.
func (e *Engine) Generate(account string) (*Key, error) {
	return e.generate(account, nil)
}

// FromSecret rebuilds the key for a stored base32 secret.
func (e *Engine) FromSecret(secret, account string) (*Key, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	return e.generate(account, raw)
}

// Validate checks code against secret at now and the adjacent steps.
// A code of the wrong length is reported as invalid, not as an error.
func (e *Engine) Validate(secret, code string, now time.Time) (bool, error) {
	if _, err := decodeSecret(secret); err != nil {
		return false, err
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, now.UTC(), validateOpts)
	if errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return false, nil
	}
	return ok, err
}

// Code returns the code for secret at t.
func (e *Engine) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), validateOpts)
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	if s == "" {
		return nil, errors.New("empty otp secret")
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("invalid otp secret: %w", err)
	}
	return raw, nil
}
