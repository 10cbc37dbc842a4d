package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/MrEthical07/goIdentity/model"
)

const accountColumns = `id, email, name, username, password_hash, verified,
	otp_hash, otp_purpose, otp_expires_at, otp_attempts,
	reset_state, reset_expires_at,
	bio, website, phone_number, date_of_birth, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		a          model.Account
		otpHash    []byte
		otpPurpose int16
		attempts   int32
		resetState int16
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Username, &a.PasswordHash, &a.Verified,
		&otpHash, &otpPurpose, &a.OTP.ExpiresAt, &attempts,
		&resetState, &a.Reset.ExpiresAt,
		&a.Bio, &a.Website, &a.PhoneNumber, &a.DateOfBirth, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Account{}, err
	}
	copy(a.OTP.Hash[:], otpHash)
	a.OTP.Purpose = model.OTPPurpose(otpPurpose)
	a.OTP.Attempts = int(attempts)
	a.Reset.State = model.ResetState(resetState)
	return a, nil
}

func otpHashBytes(a model.Account) []byte {
	if a.OTP.Purpose == model.OTPNone {
		return []byte{}
	}
	return a.OTP.Hash[:]
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func (s *Store) findOne(ctx context.Context, op, where string, arg any) (model.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where+` = $1`, arg)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrNotFound
	}
	if err != nil {
		return model.Account{}, oops.Code("ACCOUNT_FIND_FAILED").With("operation", op).Wrap(err)
	}
	return a, nil
}

// FindByEmail implements CredentialStore.
func (s *Store) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	return s.findOne(ctx, "find_by_email", "email", email)
}

// FindByUsername implements CredentialStore.
func (s *Store) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	return s.findOne(ctx, "find_by_username", "username", username)
}

// FindByID implements CredentialStore.
func (s *Store) FindByID(ctx context.Context, id string) (model.Account, error) {
	return s.findOne(ctx, "find_by_id", "id", id)
}

// Create inserts a. A taken id, email or username is model.ErrConflict.
func (s *Store) Create(ctx context.Context, a model.Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.Email, a.Name, a.Username, a.PasswordHash, a.Verified,
		otpHashBytes(a), int16(a.OTP.Purpose), utc(a.OTP.ExpiresAt), int32(a.OTP.Attempts),
		int16(a.Reset.State), utc(a.Reset.ExpiresAt),
		a.Bio, a.Website, a.PhoneNumber, utc(a.DateOfBirth), utc(a.CreatedAt), utc(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").With("account_id", a.ID).Wrap(err)
	}
	return nil
}

// SaveCredentials writes the password, verification, code and reset columns of a.ID.
func (s *Store) SaveCredentials(ctx context.Context, a model.Account) error {
	return s.update(ctx, "save_credentials", a.ID, `
		UPDATE accounts SET
			password_hash = $2, verified = $3,
			otp_hash = $4, otp_purpose = $5, otp_expires_at = $6, otp_attempts = $7,
			reset_state = $8, reset_expires_at = $9, updated_at = $10
		WHERE id = $1`,
		a.ID, a.PasswordHash, a.Verified,
		otpHashBytes(a), int16(a.OTP.Purpose), utc(a.OTP.ExpiresAt), int32(a.OTP.Attempts),
		int16(a.Reset.State), utc(a.Reset.ExpiresAt), utc(a.UpdatedAt),
	)
}

// SaveProfile writes the name, bio and website columns of a.ID.
func (s *Store) SaveProfile(ctx context.Context, a model.Account) error {
	return s.update(ctx, "save_profile", a.ID, `
		UPDATE accounts SET name = $2, bio = $3, website = $4, updated_at = $5
		WHERE id = $1`,
		a.ID, a.Name, a.Bio, a.Website, utc(a.UpdatedAt),
	)
}

// SaveUsername writes the username column of a.ID. A taken handle is model.ErrConflict.
func (s *Store) SaveUsername(ctx context.Context, a model.Account) error {
	return s.update(ctx, "save_username", a.ID, `
		UPDATE accounts SET username = $2, updated_at = $3
		WHERE id = $1`,
		a.ID, a.Username, utc(a.UpdatedAt),
	)
}

func (s *Store) update(ctx context.Context, op, id, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict
		}
		return oops.Code("ACCOUNT_SAVE_FAILED").With("operation", op).With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes the account; posts and follow edges cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
