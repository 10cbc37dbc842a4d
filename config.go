package goIdentity

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
)

// Config is the complete engine configuration. Obtain a baseline from
// [DefaultConfig] and override fields; [Builder.Build] calls [Config.Validate].
//
// koanf tags let cmd/goidentity load the same struct from YAML and flags.
type Config struct {
	JWT        JWTConfig        `koanf:"jwt"`
	OTP        OTPConfig        `koanf:"otp"`
	Password   PasswordConfig   `koanf:"password"`
	Cache      CacheConfig      `koanf:"cache"`
	Username   UsernameConfig   `koanf:"username"`
	Pagination PaginationConfig `koanf:"pagination"`
	Executor   ExecutorConfig   `koanf:"executor"`
	Delivery   DeliveryConfig   `koanf:"delivery"`
	Audit      AuditConfig      `koanf:"audit"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// JWTConfig controls token signing and the per-purpose lifetimes.
//
// HS256 takes its key from Secret unless PrivateKey is set. Ed25519 needs both
// PrivateKey and PublicKey.
type JWTConfig struct {
	SigningMethod string        `koanf:"signing_method"`
	Secret        string        `koanf:"secret"`
	PrivateKey    []byte        `koanf:"-"`
	PublicKey     []byte        `koanf:"-"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	Leeway        time.Duration `koanf:"leeway"`
	KeyID         string        `koanf:"key_id"`

	SessionTTL      time.Duration `koanf:"session_ttl"`
	VerificationTTL time.Duration `koanf:"verification_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`
	// RefreshFraction of a session token's lifetime after which VerifyToken returns a
	// refreshed token. Zero disables sliding sessions.
	RefreshFraction float64 `koanf:"refresh_fraction"`
}

// OTPConfig controls one-time codes and the reset flow window.
type OTPConfig struct {
	Digits       int           `koanf:"digits"`
	TTL          time.Duration `koanf:"ttl"`
	MaxAttempts  int           `koanf:"max_attempts"`
	ResetFlowTTL time.Duration `koanf:"reset_flow_ttl"`

	// RequestLimit bounds ResendOTP and ForgotPassword calls per address within
	// RequestWindow. It needs Redis; zero disables the limit.
	RequestLimit  int           `koanf:"request_limit"`
	RequestWindow time.Duration `koanf:"request_window"`
}

// PasswordConfig holds Argon2id parameters and password length bounds.
type PasswordConfig struct {
	Memory        uint32 `koanf:"memory"`
	Time          uint32 `koanf:"time"`
	Parallelism   uint8  `koanf:"parallelism"`
	SaltLength    uint32 `koanf:"salt_length"`
	KeyLength     uint32 `koanf:"key_length"`
	MinLength     int    `koanf:"min_length"`
	MaxLength     int    `koanf:"max_length"`
	RehashOnLogin bool   `koanf:"rehash_on_login"`
}

// CacheConfig controls the read-model cache. TTLs are per view kind.
type CacheConfig struct {
	Namespace     string        `koanf:"namespace"`
	Timeout       time.Duration `koanf:"timeout"`
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ScanCount     int64         `koanf:"scan_count"`

	CredentialTTL time.Duration `koanf:"credential_ttl"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	ProfileTTL    time.Duration `koanf:"profile_ttl"`
	PostsTTL      time.Duration `koanf:"posts_ttl"`
	FeedTTL       time.Duration `koanf:"feed_ttl"`
	SearchTTL     time.Duration `koanf:"search_ttl"`

	// SynchronousInvalidation deletes stale families before a mutation returns.
	SynchronousInvalidation bool `koanf:"synchronous_invalidation"`
}

// UsernameConfig bounds handle generation.
type UsernameConfig struct {
	MaxAttempts      int `koanf:"max_attempts"`
	Suggestions      int `koanf:"suggestions"`
	SuggestionProbes int `koanf:"suggestion_probes"`
}

// PaginationConfig applies to every paged read model.
type PaginationConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

// ExecutorConfig sizes the background executor. Workers == 0 runs tasks inline.
type ExecutorConfig struct {
	Workers     int           `koanf:"workers"`
	BufferSize  int           `koanf:"buffer_size"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
}

// DeliveryConfig controls OTP message rendering and retry.
//
// Templates are text/template sources executed with .Name, .Email, .Code and
// .Minutes.
type DeliveryConfig struct {
	Attempts    uint64        `koanf:"attempts"`
	BaseBackoff time.Duration `koanf:"base_backoff"`
	MaxBackoff  time.Duration `koanf:"max_backoff"`

	VerificationSubject string `koanf:"verification_subject"`
	VerificationBody    string `koanf:"verification_body"`
	ResetSubject        string `koanf:"reset_subject"`
	ResetBody           string `koanf:"reset_body"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BufferSize  int           `koanf:"buffer_size"`
	DropIfFull  bool          `koanf:"drop_if_full"`
	SinkTimeout time.Duration `koanf:"sink_timeout"`
}

// MetricsConfig enables in-process counters.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// DefaultConfig returns the production baseline. JWT.Secret is empty and must be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod:   "hs256",
			Issuer:          "goidentity",
			SessionTTL:      15 * 24 * time.Hour,
			VerificationTTL: 15 * time.Minute,
			ResetTTL:        10 * time.Minute,
			RefreshFraction: 0.5,
		},
		OTP: OTPConfig{
			Digits:        4,
			TTL:           10 * time.Minute,
			MaxAttempts:   5,
			ResetFlowTTL:  15 * time.Minute,
			RequestLimit:  5,
			RequestWindow: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:        65536,
			Time:          3,
			Parallelism:   2,
			SaltLength:    16,
			KeyLength:     32,
			MinLength:     password.DefaultMinPasswordBytes,
			MaxLength:     password.DefaultMaxPasswordBytes,
			RehashOnLogin: true,
		},
		Cache: CacheConfig{
			Namespace:     "gid",
			Timeout:       250 * time.Millisecond,
			ProbeInterval: 5 * time.Second,
			ScanCount:     100,
			CredentialTTL: time.Hour,
			SessionTTL:    time.Hour,
			ProfileTTL:    2 * time.Hour,
			PostsTTL:      time.Hour,
			FeedTTL:       5 * time.Minute,
			SearchTTL:     10 * time.Minute,
		},
		Username: UsernameConfig{
			MaxAttempts:      10,
			Suggestions:      3,
			SuggestionProbes: 10,
		},
		Pagination: PaginationConfig{
			DefaultLimit: 10,
			MaxLimit:     50,
		},
		Executor: ExecutorConfig{
			Workers:     4,
			BufferSize:  1024,
			TaskTimeout: 10 * time.Second,
		},
		Delivery: DeliveryConfig{
			Attempts:            3,
			BaseBackoff:         200 * time.Millisecond,
			MaxBackoff:          2 * time.Second,
			VerificationSubject: "Verify your email",
			VerificationBody:    "Hi {{.Name}}, your verification code is {{.Code}}. It expires in {{.Minutes}} minutes.",
			ResetSubject:        "Reset your password",
			ResetBody:           "Hi {{.Name}}, your password reset code is {{.Code}}. It expires in {{.Minutes}} minutes.",
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// NewTokenManager builds the token manager described by c. A nil now uses time.Now.
func (c JWTConfig) NewTokenManager(now func() time.Time) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.SigningMethod)),
		PrivateKey:    cloneBytes(c.signingKey()),
		PublicKey:     cloneBytes(c.PublicKey),
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
		RequireIAT:    true,
		Now:           now,
	})
}

// signingKey returns the key material for the configured method.
func (c *JWTConfig) signingKey() []byte {
	if len(c.PrivateKey) > 0 {
		return c.PrivateKey
	}
	if strings.EqualFold(c.SigningMethod, "hs256") && c.Secret != "" {
		return []byte(c.Secret)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.signingKey()) < 32 {
			return errors.New("JWT hs256 requires a secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("JWT ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("JWT ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SessionTTL <= 0 || c.JWT.VerificationTTL <= 0 || c.JWT.ResetTTL <= 0 {
		return errors.New("JWT token lifetimes must be > 0")
	}
	if c.JWT.VerificationTTL > c.JWT.SessionTTL || c.JWT.ResetTTL > c.JWT.SessionTTL {
		return errors.New("JWT verification and reset lifetimes must not exceed SessionTTL")
	}
	if c.JWT.RefreshFraction < 0 || c.JWT.RefreshFraction >= 1 {
		return errors.New("JWT RefreshFraction must be in [0, 1)")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxAttempts <= 0 {
		return errors.New("OTP MaxAttempts must be > 0")
	}
	if c.OTP.ResetFlowTTL < c.OTP.TTL {
		return errors.New("OTP ResetFlowTTL must be >= OTP TTL")
	}
	if c.OTP.RequestLimit < 0 || (c.OTP.RequestLimit > 0 && c.OTP.RequestWindow <= 0) {
		return errors.New("OTP RequestLimit must be >= 0 with a positive RequestWindow")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password length bounds are invalid")
	}

	if c.Cache.Timeout <= 0 {
		return errors.New("Cache Timeout must be > 0")
	}
	for name, ttl := range map[string]time.Duration{
		"CredentialTTL": c.Cache.CredentialTTL,
		"SessionTTL":    c.Cache.SessionTTL,
		"ProfileTTL":    c.Cache.ProfileTTL,
		"PostsTTL":      c.Cache.PostsTTL,
		"FeedTTL":       c.Cache.FeedTTL,
		"SearchTTL":     c.Cache.SearchTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("Cache %s must be > 0", name)
		}
	}

	if c.Username.MaxAttempts <= 0 || c.Username.Suggestions <= 0 || c.Username.SuggestionProbes < c.Username.Suggestions {
		return errors.New("Username generation bounds are invalid")
	}
	if c.Pagination.DefaultLimit <= 0 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return errors.New("Pagination limits are invalid")
	}
	if c.Executor.Workers < 0 || c.Executor.BufferSize <= 0 {
		return errors.New("Executor Workers must be >= 0 and BufferSize > 0")
	}
	if c.Delivery.Attempts == 0 {
		return errors.New("Delivery Attempts must be > 0")
	}
	if _, err := parseTemplates(c.Delivery); err != nil {
		return err
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}
	return nil
}

type messageTemplates struct {
	verificationSubject *template.Template
	verificationBody    *template.Template
	resetSubject        *template.Template
	resetBody           *template.Template
}

func parseTemplates(cfg DeliveryConfig) (messageTemplates, error) {
	var (
		out messageTemplates
		err error
	)
	parse := func(name, src string) *template.Template {
		if err != nil {
			return nil
		}
		var t *template.Template
		t, err = template.New(name).Option("missingkey=error").Parse(src)
		if err != nil {
			err = fmt.Errorf("Delivery %s template: %w", name, err)
		}
		return t
	}
	out.verificationSubject = parse("verification_subject", cfg.VerificationSubject)
	out.verificationBody = parse("verification_body", cfg.VerificationBody)
	out.resetSubject = parse("reset_subject", cfg.ResetSubject)
	out.resetBody = parse("reset_body", cfg.ResetBody)
	if err != nil {
		return out, err
	}

	sample := messageData{Name: "n", Email: "e", Code: "0000", Minutes: 1}
	for _, t := range []*template.Template{out.verificationSubject, out.verificationBody, out.resetSubject, out.resetBody} {
		if execErr := t.Execute(io.Discard, sample); execErr != nil {
			return out, fmt.Errorf("Delivery %s template: %w", t.Name(), execErr)
		}
	}
	return out, nil
}
