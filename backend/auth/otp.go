package auth

import (
	"strings"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/apperror"
	"github.com/PhilHem/go-totp-identity/backend/mfa"
)

// OTPEngine is the TOTP primitive the service depends on.
type OTPEngine interface {
	Generate(account string) (*mfa.Key, error)
	FromSecret(secret, account string) (*mfa.Key, error)
	Validate(secret, code string, now time.Time) (bool, error)
}

// ResponseType selects the representation enable-OTP returns.
type ResponseType string

const (
	ResponseSecretKey ResponseType = "SECRET_KEY"
	ResponseURL       ResponseType = "URL"
	ResponseQRPNG     ResponseType = "QR_PNG"
	ResponseQRBase64  ResponseType = "QR_BASE64"
)

// ParseResponseType defaults an empty value to URL.
func ParseResponseType(s string) (ResponseType, error) {
	switch rt := ResponseType(strings.TrimSpace(s)); rt {
	case "":
		return ResponseURL, nil
	case ResponseSecretKey, ResponseURL, ResponseQRPNG, ResponseQRBase64:
		return rt, nil
	default:
		return "", apperror.BadRequest("Unknown response_type %q. Use SECRET_KEY, URL, QR_PNG or QR_BASE64.", s)
	}
}

// Provisioning carries exactly one representation of a new secret: Value
// for the text forms, PNG for QR_PNG.
type Provisioning struct {
	Type  ResponseType
	Value string
	PNG   []byte
}

func render(key *mfa.Key, rt ResponseType) (*Provisioning, error) {
	p := &Provisioning{Type: rt}
	switch rt {
	case ResponseSecretKey:
		p.Value = key.Secret()
	case ResponseQRPNG:
		b, err := key.PNG()
		if err != nil {
			return nil, apperror.Transport("Error generating QR code", err)
		}
		p.PNG = b
	case ResponseQRBase64:
		s, err := key.Base64PNG()
		if err != nil {
			return nil, apperror.Transport("Error generating QR code", err)
		}
		p.Value = s
	default:
		p.Type = ResponseURL
		p.Value = key.URL()
	}
	return p, nil
}
