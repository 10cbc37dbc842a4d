package goIdentity

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"text/template"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/internal/tasks"
	"github.com/MrEthical07/goIdentity/internal/username"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine drives the account verification lifecycle, token issuance and the cached
// read models.
//
// Engine methods are safe for concurrent use. Construct with [New] and [Builder.Build]
// and release background workers with [Engine.Close].
type Engine struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	accounts  CredentialStore
	content   ContentStore
	deliverer OTPDeliverer
	templates messageTemplates

	cache       *cache.Layer
	redisStore  *cache.RedisStore
	otpLimiter  *rate.Limiter
	coordinator *invalidate.Coordinator
	executor    *tasks.Executor
	audit       *audit.Dispatcher
	metrics     *Metrics

	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	usernames    *username.Generator

	flowDeps  flows.Deps
	closeOnce sync.Once
}

type engineParts struct {
	logger    *zap.Logger
	now       func() time.Time
	accounts  CredentialStore
	content   ContentStore
	redis     redis.UniversalClient
	cache     CacheStore
	deliverer OTPDeliverer
	auditSink AuditSink
}

func newEngine(cfg Config, p engineParts) (*Engine, error) {
	e := &Engine{
		config:    cfg,
		logger:    p.logger.Named("goidentity"),
		now:       p.now,
		accounts:  p.accounts,
		content:   p.content,
		deliverer: p.deliverer,
		metrics:   NewMetrics(cfg.Metrics),
	}

	templates, err := parseTemplates(cfg.Delivery)
	if err != nil {
		return nil, err
	}
	e.templates = templates

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}
	e.passwordHash = ph

	jm, err := cfg.JWT.NewTokenManager(p.now)
	if err != nil {
		return nil, err
	}
	e.jwtManager = jm

	store := p.cache
	if store == nil && p.redis != nil {
		e.redisStore = cache.NewRedisStore(p.redis, cache.RedisConfig{
			Namespace:     cfg.Cache.Namespace,
			Timeout:       cfg.Cache.Timeout,
			ProbeInterval: cfg.Cache.ProbeInterval,
			ScanCount:     cfg.Cache.ScanCount,
		}, e.logger)
		e.redisStore.StartProbe()
		store = e.redisStore
	}
	e.cache = cache.NewLayer(store, e.logger, cache.Hooks{
		Hit:   func() { e.metrics.Inc(MetricCacheHit) },
		Miss:  func() { e.metrics.Inc(MetricCacheMiss) },
		Error: func() { e.metrics.Inc(MetricCacheError) },
	})

	e.executor = tasks.New(tasks.Config{
		Workers:     cfg.Executor.Workers,
		BufferSize:  cfg.Executor.BufferSize,
		TaskTimeout: cfg.Executor.TaskTimeout,
	}, e.logger)
	e.executor.OnFailure(func(tasks.Task, error) { e.metrics.Inc(MetricTaskFailed) })

	e.otpLimiter = rate.New(p.redis, rate.Config{
		Namespace:   cfg.Cache.Namespace,
		MaxRequests: cfg.OTP.RequestLimit,
		Window:      cfg.OTP.RequestWindow,
		Timeout:     cfg.Cache.Timeout,
	})

	e.coordinator = invalidate.New(e.cache, e.schedule, invalidate.Config{
		Synchronous: cfg.Cache.SynchronousInvalidation,
		OnFailure:   func() { e.metrics.Inc(MetricInvalidationFailed) },
	}, e.logger)

	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, p.auditSink, e.logger)

	e.usernames = username.New(e.usernameTaken, internal.RandomIntn, cfg.Username.MaxAttempts)
	e.flowDeps = e.buildFlowDeps()
	return e, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Policy: flows.Policy{
			OTPDigits:          e.config.OTP.Digits,
			OTPTTL:             e.config.OTP.TTL,
			OTPMaxAttempts:     e.config.OTP.MaxAttempts,
			ResetFlowTTL:       e.config.OTP.ResetFlowTTL,
			SessionTTL:         e.config.JWT.SessionTTL,
			VerificationTTL:    e.config.JWT.VerificationTTL,
			ResetTokenTTL:      e.config.JWT.ResetTTL,
			RefreshFraction:    e.config.JWT.RefreshFraction,
			CredentialCacheTTL: e.config.Cache.CredentialTTL,
			SessionCacheTTL:    e.config.Cache.SessionTTL,
			RehashOnLogin:      e.config.Password.RehashOnLogin,
		},
		Now:      e.now,
		NewID:    uuid.NewString,
		NewOTP:   internal.NewOTP,
		HashOTP:  internal.HashOTP,
		MatchOTP: internal.OTPMatches,

		FindByEmail:     e.accounts.FindByEmail,
		FindByID:        e.accounts.FindByID,
		UsernameTaken:   e.usernameTaken,
		CreateAccount:   e.accounts.Create,
		SaveCredentials: e.accounts.SaveCredentials,
		MapStoreError:   storeError,

		HashPassword:   e.passwordHash.Hash,
		VerifyPassword: e.passwordHash.Verify,
		NeedsRehash: func(hash string) bool {
			upgrade, err := e.passwordHash.NeedsUpgrade(hash)
			return err == nil && upgrade
		},
		MapPasswordError: passwordError,

		GenerateUsername: e.generateUsername,

		IssueToken: e.jwtManager.Issue,
		ParseToken: e.jwtManager.Parse,

		ThrottleOTP: e.throttleOTP,
		DeliverOTP:  e.deliverOTP,

		CacheGet:   e.cache.GetJSON,
		CacheSet:   e.cache.SetJSON,
		Invalidate: e.coordinator.Invalidate,
		Evict:      e.coordinator.Evict,

		MetricInc: func(id int) { e.metrics.Inc(MetricID(id)) },
		EmitAudit: e.emitAudit,

		Metrics: flows.Metrics{
			SignUpSuccess:             int(MetricSignUpSuccess),
			SignUpConflict:            int(MetricSignUpConflict),
			OTPIssued:                 int(MetricOTPIssued),
			OTPVerifySuccess:          int(MetricOTPVerifySuccess),
			OTPVerifyFailure:          int(MetricOTPVerifyFailure),
			OTPAttemptsExceeded:       int(MetricOTPAttemptsExceeded),
			OTPRateLimited:            int(MetricOTPRateLimited),
			LoginSuccess:              int(MetricLoginSuccess),
			LoginFailure:              int(MetricLoginFailure),
			LoginVerificationRequired: int(MetricLoginVerificationRequired),
			ResetRequest:              int(MetricPasswordResetRequest),
			ResetOTPSuccess:           int(MetricPasswordResetOTPSuccess),
			ResetOTPFailure:           int(MetricPasswordResetOTPFailure),
			ResetSuccess:              int(MetricPasswordResetSuccess),
			ResetUnauthorized:         int(MetricPasswordResetUnauthorized),
			PasswordChangeSuccess:     int(MetricPasswordChangeSuccess),
			PasswordChangeFailure:     int(MetricPasswordChangeFailure),
			TokenValid:                int(MetricTokenValid),
			TokenInvalid:              int(MetricTokenInvalid),
			TokenRefreshed:            int(MetricTokenRefreshed),
			Logout:                    int(MetricLogout),
		},
		Errors: flows.Errors{
			EngineNotReady:     ErrEngineNotReady,
			Conflict:           ErrConflict,
			NotFound:           ErrNotFound,
			InvalidInput:       ErrInvalidInput,
			InvalidCredentials: ErrInvalidCredentials,
			InvalidOTP:         ErrInvalidOTP,
			Expired:            ErrExpired,
			Unauthorized:       ErrUnauthorized,
			Exhausted:          ErrExhausted,
			AlreadyVerified:    ErrAlreadyVerified,
			PasswordReuse:      ErrPasswordReuse,
			RateLimited:        ErrRateLimited,
			InvalidToken:       ErrInvalidToken,
			TokenExpired:       ErrTokenExpired,
			TokenMalformed:     ErrTokenMalformed,
			TokenBadSignature:  ErrTokenBadSignature,
		},
	}
}

// throttleOTP applies the per-address code request budget. Counter failures
// allow the request.
func (e *Engine) throttleOTP(ctx context.Context, email string) error {
	err := e.otpLimiter.Allow(ctx, email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	}
	e.metrics.Inc(MetricCacheError)
	e.logger.Warn("otp request limiter unavailable", zap.Error(err))
	return nil
}

// Close drains background work, stops the cache probe and flushes audit events.
// Invalidations and deliveries still queued when ctx ends are abandoned; stale
// entries then expire by TTL.
func (e *Engine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var err error
	e.closeOnce.Do(func() {
		err = e.executor.Close(ctx)
		e.audit.Close()
		e.redisStore.Close()
	})
	return err
}

// AuditDropped returns the number of audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// BackgroundStats reports executor counters.
type BackgroundStats struct {
	Completed uint64
	Failed    uint64
	Dropped   uint64
	Queued    int
}

// BackgroundStats returns current executor counters.
func (e *Engine) BackgroundStats() BackgroundStats {
	if e == nil {
		return BackgroundStats{}
	}
	s := e.executor.Stats()
	return BackgroundStats{Completed: s.Completed, Failed: s.Failed, Dropped: s.Dropped, Queued: s.Queued}
}

// CacheAvailable reports whether a cache is configured and currently reachable.
func (e *Engine) CacheAvailable() bool {
	return e != nil && e.cache.Available()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) schedule(name string, fn func(ctx context.Context) error) bool {
	return e.executor.Submit(tasks.Task{Name: name, Run: fn})
}

func (e *Engine) usernameTaken(ctx context.Context, candidate string) (bool, error) {
	_, err := e.accounts.FindByUsername(ctx, candidate)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

func (e *Engine) generateUsername(ctx context.Context, name string) (string, error) {
	handle, err := e.usernames.Generate(ctx, name)
	if err != nil {
		if errors.Is(err, username.ErrExhausted) {
			return "", ErrExhausted
		}
		return "", storeError("username.generate", err)
	}
	return handle, nil
}

type messageData struct {
	Name    string
	Email   string
	Code    string
	Minutes int
}

func (e *Engine) renderOTP(acct model.Account, code string, purpose model.OTPPurpose) (OTPMessage, error) {
	subject, body := e.templates.verificationSubject, e.templates.verificationBody
	if purpose == model.OTPReset {
		subject, body = e.templates.resetSubject, e.templates.resetBody
	}
	data := messageData{
		Name:    acct.Name,
		Email:   acct.Email,
		Code:    code,
		Minutes: int(e.config.OTP.TTL / time.Minute),
	}

	render := func(t *template.Template) (string, error) {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	s, err := render(subject)
	if err != nil {
		return OTPMessage{}, err
	}
	b, err := render(body)
	if err != nil {
		return OTPMessage{}, err
	}
	return OTPMessage{Email: acct.Email, Name: acct.Name, Code: code, Subject: s, Body: b, Purpose: purpose}, nil
}

// deliverOTP renders and hands the code to the executor. The durable OTP hash is
// already stored, so a lost delivery only costs a resend.
func (e *Engine) deliverOTP(_ context.Context, acct model.Account, code string, purpose model.OTPPurpose) {
	logger := e.logger.With(zap.String("account_id", acct.ID), zap.Stringer("purpose", purpose))

	msg, err := e.renderOTP(acct, code, purpose)
	if err != nil {
		logger.Error("render otp message", zap.Error(err))
		e.metricInc(MetricOTPDeliveryFailed)
		return
	}
	if e.deliverer == nil {
		logger.Warn("no otp deliverer configured, code dropped")
		return
	}

	policy := tasks.RetryPolicy{
		Attempts: e.config.Delivery.Attempts,
		Base:     e.config.Delivery.BaseBackoff,
		Max:      e.config.Delivery.MaxBackoff,
	}
	accepted := e.executor.Submit(tasks.Task{
		Name: "deliver_otp",
		Run: func(ctx context.Context) error {
			err := tasks.Retry(ctx, policy, func(ctx context.Context) error {
				return e.deliverer.Deliver(ctx, msg)
			})
			if err != nil {
				e.metricInc(MetricOTPDeliveryFailed)
				logger.Error("otp delivery failed", zap.Error(err))
				return err
			}
			e.metricInc(MetricOTPDelivered)
			return nil
		},
	})
	if !accepted {
		e.metricInc(MetricOTPDeliveryFailed)
		logger.Error("otp delivery not scheduled")
	}
}
