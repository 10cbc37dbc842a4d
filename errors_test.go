package goIdentity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/goIdentity/password"
	"github.com/samber/oops"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{ErrNotFound, StatusNotFound},
		{ErrTokenExpired, StatusUnauthorized},
		{ErrTokenBadSignature, StatusUnauthorized},
		{ErrUnauthorized, StatusUnauthorized},
		{ErrConflict, StatusClientError},
		{&UsernameTakenError{Username: "bob"}, StatusClientError},
		{ErrInvalidOTP, StatusClientError},
		{ErrExpired, StatusClientError},
		{ErrExhausted, StatusClientError},
		{ErrPasswordReuse, StatusClientError},
		{ErrRateLimited, StatusRateLimited},
		{fmt.Errorf("wrapped: %w", ErrInvalidCredentials), StatusClientError},
		{storeError("op", errors.New("db down")), StatusServerError},
		{ErrEngineNotReady, StatusServerError},
	}
	for _, tc := range tests {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestTokenErrorsWrapInvalidToken(t *testing.T) {
	for _, err := range []error{ErrTokenExpired, ErrTokenMalformed, ErrTokenBadSignature} {
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%v must match ErrInvalidToken", err)
		}
	}
}

func TestStoreErrorKeepsSentinels(t *testing.T) {
	if storeError("op", nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if err := storeError("op", fmt.Errorf("row: %w", ErrNotFound)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := storeError("op", ErrConflict); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	err := storeError("login.find", errors.New("connection reset"))
	oe, ok := oops.AsOops(err)
	if !ok {
		t.Fatalf("expected oops error, got %T", err)
	}
	if oe.Code() != "STORE_FAILED" || oe.Context()["operation"] != "login.find" {
		t.Fatalf("unexpected oops error: code=%v context=%v", oe.Code(), oe.Context())
	}
}

func TestPasswordErrorMapping(t *testing.T) {
	if err := passwordError(password.ErrPasswordTooShort); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := passwordError(errors.New("hash broke")); Classify(err) != StatusServerError {
		t.Fatalf("expected server error, got %v", Classify(err))
	}
}

func TestUsernameTakenErrorMessage(t *testing.T) {
	err := &UsernameTakenError{Username: "bob", Suggestions: []string{"bob_1"}}
	if !errors.Is(err, ErrConflict) || err.Error() == "" {
		t.Fatalf("unexpected error: %v", err)
	}
}
