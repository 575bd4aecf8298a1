package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Email       string  `json:"email" gorm:"uniqueIndex"`
	Password    string  `json:"-"` // never serialize
	OTPSecret   *string `json:"-"` // base32 TOTP secret, nil when 2FA is not provisioned
	OTPVerified *bool   `json:"-"` // nil: no 2FA, false: enrollment pending, true: enrolled
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	Email      string `json:"email"`
	OTPEnabled bool   `json:"otp_enabled"`
}

// OTPEnabled reports whether enrollment has been confirmed.
func (u *User) OTPEnabled() bool {
	return u.OTPVerified != nil && *u.OTPVerified
}

// BeginEnrollment stores a fresh secret and marks it unconfirmed.
func (u *User) BeginEnrollment(secret string) {
	verified := false
	u.OTPSecret = &secret
	u.OTPVerified = &verified
}

func (u *User) ConfirmEnrollment() {
	verified := true
	u.OTPVerified = &verified
}

// ClearOTP removes the secret and the verified flag together.
func (u *User) ClearOTP() {
	u.OTPSecret = nil
	u.OTPVerified = nil
}

func (u *User) Public() PublicUser {
	return PublicUser{Email: u.Email, OTPEnabled: u.OTPEnabled()}
}

// Clone returns a deep copy so callers never share the optional fields.
func (u *User) Clone() *User {
	c := *u
	if u.OTPSecret != nil {
		s := *u.OTPSecret
		c.OTPSecret = &s
	}
	if u.OTPVerified != nil {
		v := *u.OTPVerified
		c.OTPVerified = &v
	}
	return &c
}
