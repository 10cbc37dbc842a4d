package model

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by stores when a unique field is already taken.
	ErrConflict = errors.New("conflict")
)

// OTPPurpose tags which cycle a pending one-time code belongs to.
type OTPPurpose uint8

const (
	OTPNone OTPPurpose = iota
	OTPVerification
	OTPReset
)

func (p OTPPurpose) String() string {
	switch p {
	case OTPVerification:
		return "verification"
	case OTPReset:
		return "reset"
	default:
		return "none"
	}
}

// OTPState is the hashed one-time code held on an account. A zero value means no code
// is pending. Issuing a new code overwrites the previous one.
type OTPState struct {
	Hash      [32]byte
	Purpose   OTPPurpose
	ExpiresAt time.Time
	Attempts  int
}

// Pending reports whether a code of the given purpose is active at now.
func (o OTPState) Pending(purpose OTPPurpose, now time.Time) bool {
	return purpose != OTPNone && o.Purpose == purpose && now.Before(o.ExpiresAt)
}

// ResetState is the password reset sub-machine.
type ResetState uint8

const (
	ResetIdle ResetState = iota
	ResetOTPSent
	ResetOTPVerified
)

func (s ResetState) String() string {
	switch s {
	case ResetOTPSent:
		return "otp_sent"
	case ResetOTPVerified:
		return "otp_verified"
	default:
		return "idle"
	}
}

// ResetFlow is the durable reset marker. An expired flow reads as idle.
type ResetFlow struct {
	State     ResetState
	ExpiresAt time.Time
}

// Current returns the effective state at now.
func (r ResetFlow) Current(now time.Time) ResetState {
	if r.State == ResetIdle || !now.Before(r.ExpiresAt) {
		return ResetIdle
	}
	return r.State
}

// Account is the durable identity record.
type Account struct {
	ID           string
	Email        string
	Name         string
	Username     string
	PasswordHash string
	Verified     bool
	OTP          OTPState
	Reset        ResetFlow
	Bio          string
	Website      string
	PhoneNumber  string
	DateOfBirth  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ClearOTP discards any pending code.
func (a *Account) ClearOTP() {
	a.OTP = OTPState{}
}
