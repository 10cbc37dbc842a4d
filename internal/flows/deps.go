package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
)

// Policy holds lifetimes and limits consumed by the flows.
type Policy struct {
	OTPDigits      int
	OTPTTL         time.Duration
	OTPMaxAttempts int
	ResetFlowTTL   time.Duration

	SessionTTL      time.Duration
	VerificationTTL time.Duration
	ResetTokenTTL   time.Duration
	RefreshFraction float64

	CredentialCacheTTL time.Duration
	SessionCacheTTL    time.Duration

	RehashOnLogin bool
}

// Errors carries the root sentinels so flows never import the root package.
type Errors struct {
	EngineNotReady     error
	Conflict           error
	NotFound           error
	InvalidInput       error
	InvalidCredentials error
	InvalidOTP         error
	Expired            error
	Unauthorized       error
	Exhausted          error
	AlreadyVerified    error
	PasswordReuse      error
	RateLimited        error
	InvalidToken       error
	TokenExpired       error
	TokenMalformed     error
	TokenBadSignature  error
}

// Metrics carries metric slot ids.
type Metrics struct {
	SignUpSuccess             int
	SignUpConflict            int
	OTPIssued                 int
	OTPVerifySuccess          int
	OTPVerifyFailure          int
	OTPAttemptsExceeded       int
	OTPRateLimited            int
	LoginSuccess              int
	LoginFailure              int
	LoginVerificationRequired int
	ResetRequest              int
	ResetOTPSuccess           int
	ResetOTPFailure           int
	ResetSuccess              int
	ResetUnauthorized         int
	PasswordChangeSuccess     int
	PasswordChangeFailure     int
	TokenValid                int
	TokenInvalid              int
	TokenRefreshed            int
	Logout                    int
}

// Audit event names.
const (
	EventSignUp         = "signup"
	EventVerifyOTP      = "verify_otp"
	EventResendOTP      = "resend_otp"
	EventLogin          = "login"
	EventForgotPassword = "forgot_password"
	EventVerifyResetOTP = "verify_reset_otp"
	EventResetPassword  = "reset_password"
	EventChangePassword = "change_password"
	EventLogout         = "logout"
)

// Deps is built once by the engine and passed by value to every Run function.
type Deps struct {
	Policy Policy

	Now      func() time.Time
	NewID    func() string
	NewOTP   func(digits int) (string, error)
	HashOTP  func(code string) [32]byte
	MatchOTP func(stored [32]byte, provided string) bool

	FindByEmail     func(ctx context.Context, email string) (model.Account, error)
	FindByID        func(ctx context.Context, id string) (model.Account, error)
	UsernameTaken   func(ctx context.Context, username string) (bool, error)
	CreateAccount   func(ctx context.Context, account model.Account) error
	SaveCredentials func(ctx context.Context, account model.Account) error
	// MapStoreError translates adapter errors into Errors values or a wrapped server error.
	MapStoreError func(op string, err error) error

	HashPassword   func(plain string) (string, error)
	VerifyPassword func(plain, hash string) (bool, error)
	NeedsRehash    func(hash string) bool
	// MapPasswordError translates hasher input errors (length bounds) into InvalidInput.
	MapPasswordError func(err error) error

	GenerateUsername func(ctx context.Context, name string) (string, error)

	IssueToken func(subject string, purpose jwt.Purpose, ttl time.Duration) (string, error)
	ParseToken func(token string) (*jwt.Claims, error)

	// ThrottleOTP counts one code request for email and returns Errors.RateLimited
	// when the address has spent its budget.
	ThrottleOTP func(ctx context.Context, email string) error

	// DeliverOTP schedules delivery off the request path.
	DeliverOTP func(ctx context.Context, account model.Account, code string, purpose model.OTPPurpose)

	CacheGet   func(ctx context.Context, key string, dst any) bool
	CacheSet   func(ctx context.Context, key string, value any, ttl time.Duration)
	Invalidate func(ctx context.Context, reason string, families ...invalidate.Family)
	// Evict deletes families before returning regardless of the invalidation mode.
	Evict func(ctx context.Context, reason string, families ...invalidate.Family)

	MetricInc func(id int)
	EmitAudit func(ctx context.Context, event, accountID string, err error, meta map[string]string)

	Metrics Metrics
	Errors  Errors
}

func (d *Deps) ready() bool {
	return d.FindByEmail != nil && d.FindByID != nil && d.SaveCredentials != nil &&
		d.HashPassword != nil && d.VerifyPassword != nil && d.IssueToken != nil &&
		d.NewOTP != nil && d.HashOTP != nil && d.MatchOTP != nil
}

func normalizeDeps(d *Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, string, error, map[string]string) {}
	}
	if d.ThrottleOTP == nil {
		d.ThrottleOTP = func(context.Context, string) error { return nil }
	}
	if d.DeliverOTP == nil {
		d.DeliverOTP = func(context.Context, model.Account, string, model.OTPPurpose) {}
	}
	if d.CacheGet == nil {
		d.CacheGet = func(context.Context, string, any) bool { return false }
	}
	if d.CacheSet == nil {
		d.CacheSet = func(context.Context, string, any, time.Duration) {}
	}
	if d.Invalidate == nil {
		d.Invalidate = func(context.Context, string, ...invalidate.Family) {}
	}
	if d.Evict == nil {
		d.Evict = d.Invalidate
	}
	if d.NeedsRehash == nil {
		d.NeedsRehash = func(string) bool { return false }
	}
	if d.MapPasswordError == nil {
		d.MapPasswordError = func(err error) error { return err }
	}
	if d.MapStoreError == nil {
		d.MapStoreError = func(_ string, err error) error { return err }
	}
}
