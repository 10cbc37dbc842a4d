package goIdentity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type captureDeliverer struct {
	mu   sync.Mutex
	msgs []OTPMessage
}

func (d *captureDeliverer) Deliver(_ context.Context, msg OTPMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *captureDeliverer) last(t *testing.T, email string) OTPMessage {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.msgs) - 1; i >= 0; i-- {
		if d.msgs[i].Email == email {
			return d.msgs[i]
		}
	}
	t.Fatalf("no otp delivered to %s", email)
	return OTPMessage{}
}

// await waits for the nth code sent to email, counting from 1. Deliveries run on
// the background executor unless it is inline.
func (d *captureDeliverer) await(t *testing.T, email string, n int) OTPMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		d.mu.Lock()
		var seen []OTPMessage
		for _, m := range d.msgs {
			if m.Email == email {
				seen = append(seen, m)
			}
		}
		d.mu.Unlock()
		if len(seen) >= n {
			return seen[n-1]
		}
		if time.Now().After(deadline) {
			t.Fatalf("otp %d to %s not delivered, have %d", n, email, len(seen))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (d *captureDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.OTP.MaxAttempts = 3
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Executor.Workers = 0
	cfg.Cache.SynchronousInvalidation = true
	cfg.Delivery.BaseBackoff = time.Millisecond
	cfg.Delivery.MaxBackoff = 2 * time.Millisecond
	return cfg
}

type testEnv struct {
	engine    *Engine
	store     *memory.Store
	deliverer *captureDeliverer
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	clock     *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return mr, rdb
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWithAccounts(t, mutate, nil)
}

// newTestEnvWithAccounts lets wrap replace the credential store handed to the
// engine. The content store is always the unwrapped memory store.
func newTestEnvWithAccounts(t *testing.T, mutate func(*Config), wrap func(*memory.Store) CredentialStore) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		store:     memory.New(),
		deliverer: &captureDeliverer{},
		mr:        mr,
		rdb:       rdb,
		clock:     &testClock{now: time.Now()},
	}

	var accounts CredentialStore = env.store
	if wrap != nil {
		accounts = wrap(env.store)
	}

	engine, err := New().
		WithConfig(cfg).
		WithCredentialStore(accounts).
		WithContentStore(env.store).
		WithRedis(rdb).
		WithDeliverer(env.deliverer).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine

	t.Cleanup(func() {
		_ = engine.Close(context.Background())
		_ = rdb.Close()
		mr.Close()
	})
	return env
}

// signUpVerified registers and verifies an account, returning its id and a session token.
func (env *testEnv) signUpVerified(t *testing.T, name, email, password string) (string, string) {
	t.Helper()
	ctx := context.Background()

	res, err := env.engine.SignUp(ctx, SignUpRequest{Name: name, Email: email, Password: password})
	if err != nil {
		t.Fatalf("SignUp(%s) failed: %v", email, err)
	}
	verified, err := env.engine.VerifyOTP(ctx, email, env.deliverer.last(t, email).Code)
	if err != nil {
		t.Fatalf("VerifyOTP(%s) failed: %v", email, err)
	}
	return res.AccountID, verified.SessionToken
}

func wrongCode(code string) string {
	if strings.HasPrefix(code, "0") {
		return "1" + code[1:]
	}
	return "0" + code[1:]
}

func TestBuilderValidation(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected Build without a credential store to fail")
	}

	cfg := testConfig()
	cfg.JWT.Secret = "short"
	if _, err := New().WithConfig(cfg).WithCredentialStore(memory.New()).Build(); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}

	b := New().WithConfig(testConfig()).WithCredentialStore(memory.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close(context.Background())
	if _, err := b.Build(); err == nil {
		t.Fatal("expected a second Build on the same builder to fail")
	}
}

func TestReadModelsRequireContentStore(t *testing.T) {
	engine, err := New().WithConfig(testConfig()).WithCredentialStore(memory.New()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close(context.Background())

	if _, err := engine.ListFeed(context.Background(), 1, 10); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestSignUpVerifyLoginScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine

	res, err := e.SignUp(ctx, SignUpRequest{Name: "Alice Smith", Email: "Alice@Example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if res.Username != "alice_smith" {
		t.Fatalf("expected generated username alice_smith, got %q", res.Username)
	}
	if res.VerificationToken == "" {
		t.Fatal("expected verification token")
	}
	if _, err := e.VerifyToken(ctx, res.VerificationToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected verification token to be refused as a session, got %v", err)
	}

	msg := env.deliverer.last(t, "alice@example.com")
	if !strings.Contains(msg.Body, msg.Code) || msg.Purpose != OTPVerification {
		t.Fatalf("unexpected verification message: %+v", msg)
	}

	login, err := e.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login before verification failed: %v", err)
	}
	if !login.VerificationRequired {
		t.Fatal("expected unverified login to require verification")
	}
	if _, err := e.VerifyToken(ctx, login.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unverified login must not yield a session token, got %v", err)
	}

	// Login re-issued the code; the signup code is gone.
	code := env.deliverer.last(t, "alice@example.com").Code
	if code != msg.Code {
		if _, err := e.VerifyOTP(ctx, "alice@example.com", msg.Code); !errors.Is(err, ErrInvalidOTP) {
			t.Fatalf("expected superseded code to fail, got %v", err)
		}
	}
	verified, err := e.VerifyOTP(ctx, "alice@example.com", code)
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if !verified.Identity.Verified || verified.SessionToken == "" {
		t.Fatalf("unexpected verify result: %+v", verified)
	}

	tok, err := e.VerifyToken(ctx, verified.SessionToken)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if tok.Identity.ID != res.AccountID || tok.Identity.Username != "alice_smith" {
		t.Fatalf("unexpected identity: %+v", tok.Identity)
	}

	login, err = e.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil || login.VerificationRequired || login.Token == "" {
		t.Fatalf("expected verified login to succeed, res=%+v err=%v", login, err)
	}

	if _, err := e.VerifyOTP(ctx, "alice@example.com", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected consumed code to fail, got %v", err)
	}
	if err := e.ResendOTP(ctx, "alice@example.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified on resend, got %v", err)
	}
}

func TestSignUpConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine

	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "bob@example.com", Password: "password-1", Username: "bob"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "BOB@example.com", Password: "password-1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected email conflict, got %v", err)
	}
	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Bobby", Email: "bobby@example.com", Password: "password-1", Username: "bob"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "not-an-email", Password: "password-1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "short@example.com", Password: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected short password to be invalid input, got %v", err)
	}

	// Same name, no requested handle: a suffixed handle is generated.
	res, err := e.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "bob2@example.com", Password: "password-1"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if res.Username == "bob" || !strings.HasPrefix(res.Username, "bob") {
		t.Fatalf("expected suffixed handle, got %q", res.Username)
	}
}

func TestVerifyOTPAttemptBudget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine

	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Carol", Email: "carol@example.com", Password: "password-1"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	code := env.deliverer.last(t, "carol@example.com").Code

	for i := 0; i < 3; i++ {
		if _, err := e.VerifyOTP(ctx, "carol@example.com", wrongCode(code)); !errors.Is(err, ErrInvalidOTP) {
			t.Fatalf("attempt %d: expected ErrInvalidOTP, got %v", i, err)
		}
	}
	if _, err := e.VerifyOTP(ctx, "carol@example.com", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected exhausted code to be rejected, got %v", err)
	}
	if got := e.MetricsSnapshot().Counters[MetricOTPAttemptsExceeded]; got != 1 {
		t.Fatalf("expected one exhaustion, got %d", got)
	}

	if err := e.ResendOTP(ctx, "carol@example.com"); err != nil {
		t.Fatalf("ResendOTP failed: %v", err)
	}
	if _, err := e.VerifyOTP(ctx, "carol@example.com", env.deliverer.last(t, "carol@example.com").Code); err != nil {
		t.Fatalf("expected fresh code to verify, got %v", err)
	}
}

func TestVerifyOTPExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.SignUp(ctx, SignUpRequest{Name: "Dan", Email: "dan@example.com", Password: "password-1"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	code := env.deliverer.last(t, "dan@example.com").Code
	env.clock.Advance(11 * time.Minute)

	if _, err := env.engine.VerifyOTP(ctx, "dan@example.com", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signUpVerified(t, "Erin", "erin@example.com", "password-1")

	if _, err := env.engine.Login(ctx, "erin@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "nobody@example.com", "password-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Wrong password on an unverified account never reveals verification state.
	if _, err := env.engine.SignUp(ctx, SignUpRequest{Name: "Finn", Email: "finn@example.com", Password: "password-1"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	before := env.deliverer.count()
	if _, err := env.engine.Login(ctx, "finn@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if env.deliverer.count() != before {
		t.Fatal("wrong password must not trigger a new code")
	}
}

func TestPasswordResetScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	env.signUpVerified(t, "Gina", "gina@example.com", "password-1")

	if _, err := e.VerifyResetOTP(ctx, "gina@example.com", "0000"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired without an armed flow, got %v", err)
	}

	if err := e.ForgotPassword(ctx, "gina@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	msg := env.deliverer.last(t, "gina@example.com")
	if msg.Purpose != OTPReset || msg.Subject != "Reset your password" {
		t.Fatalf("unexpected reset message: %+v", msg)
	}

	if err := e.ResetPassword(ctx, "gina@example.com", "password-2", "not-a-token"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before OTP verification, got %v", err)
	}
	if _, err := e.VerifyResetOTP(ctx, "gina@example.com", wrongCode(msg.Code)); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}

	token, err := e.VerifyResetOTP(ctx, "gina@example.com", msg.Code)
	if err != nil {
		t.Fatalf("VerifyResetOTP failed: %v", err)
	}
	if _, err := e.VerifyToken(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("reset token must not act as a session, got %v", err)
	}

	if err := e.ResetPassword(ctx, "gina@example.com", "password-2", token); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if err := e.ResetPassword(ctx, "gina@example.com", "password-3", token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected replay to fail with ErrUnauthorized, got %v", err)
	}

	if _, err := e.Login(ctx, "gina@example.com", "password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if res, err := e.Login(ctx, "gina@example.com", "password-2"); err != nil || res.VerificationRequired {
		t.Fatalf("new password login failed, res=%+v err=%v", res, err)
	}
}

func TestResetTokenBoundToAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	env.signUpVerified(t, "Hank", "hank@example.com", "password-1")
	env.signUpVerified(t, "Ivy", "ivy@example.com", "password-1")

	for _, email := range []string{"hank@example.com", "ivy@example.com"} {
		if err := e.ForgotPassword(ctx, email); err != nil {
			t.Fatalf("ForgotPassword(%s) failed: %v", email, err)
		}
	}
	hankToken, err := e.VerifyResetOTP(ctx, "hank@example.com", env.deliverer.last(t, "hank@example.com").Code)
	if err != nil {
		t.Fatalf("VerifyResetOTP failed: %v", err)
	}
	if _, err := e.VerifyResetOTP(ctx, "ivy@example.com", env.deliverer.last(t, "ivy@example.com").Code); err != nil {
		t.Fatalf("VerifyResetOTP failed: %v", err)
	}

	if err := e.ResetPassword(ctx, "ivy@example.com", "password-2", hankToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected another account's token to be refused, got %v", err)
	}
}

func TestResetFlowExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signUpVerified(t, "Jay", "jay@example.com", "password-1")

	if err := env.engine.ForgotPassword(ctx, "jay@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	code := env.deliverer.last(t, "jay@example.com").Code
	env.clock.Advance(16 * time.Minute)

	if _, err := env.engine.VerifyResetOTP(ctx, "jay@example.com", code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after the flow lapsed, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id, _ := env.signUpVerified(t, "Kim", "kim@example.com", "password-1")

	if err := env.engine.ChangePassword(ctx, id, "nope-nope", "password-2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, id, "password-1", "password-1"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, id, "password-1", "password-2"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "kim@example.com", "password-2"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestVerifyTokenRefreshAndRejection(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, token := env.signUpVerified(t, "Lee", "lee@example.com", "password-1")

	res, err := env.engine.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if res.RefreshedToken != "" {
		t.Fatal("fresh token must not be refreshed")
	}

	env.clock.Advance(8 * 24 * time.Hour)
	res, err = env.engine.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if res.RefreshedToken == "" {
		t.Fatal("expected a refreshed token past the refresh fraction")
	}

	env.clock.Advance(8 * 24 * time.Hour)
	if _, err := env.engine.VerifyToken(ctx, token); !errors.Is(err, ErrTokenExpired) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := env.engine.VerifyToken(ctx, "garbage"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
	parts := strings.Split(res.RefreshedToken, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	forged := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := env.engine.VerifyToken(ctx, forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered token to be invalid, got %v", err)
	}
}

func TestVerifyTokenDeletedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id, token := env.signUpVerified(t, "Max", "max@example.com", "password-1")

	if err := env.store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// The session projection was cached at verification time; logout evicts it.
	if err := env.engine.Logout(ctx, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.VerifyToken(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a deleted account, got %v", err)
	}
}

func TestCodeRequestsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.OTP.RequestLimit = 2
		c.OTP.RequestWindow = time.Minute
	})
	ctx := context.Background()
	e := env.engine

	if _, err := e.SignUp(ctx, SignUpRequest{Name: "Rita", Email: "rita@example.com", Password: "password-1"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := e.ResendOTP(ctx, "rita@example.com"); err != nil {
			t.Fatalf("resend %d failed: %v", i, err)
		}
	}
	sent := env.deliverer.count()

	if err := e.ResendOTP(ctx, "rita@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := e.ForgotPassword(ctx, "RITA@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected shared budget across request kinds, got %v", err)
	}
	if got := env.deliverer.count(); got != sent {
		t.Fatalf("refused requests must not deliver, sent %d then %d", sent, got)
	}
	if got := e.MetricsSnapshot().Counters[MetricOTPRateLimited]; got != 2 {
		t.Fatalf("expected two refusals, got %d", got)
	}

	env.mr.FastForward(time.Minute + time.Second)
	if err := e.ResendOTP(ctx, "rita@example.com"); err != nil {
		t.Fatalf("expected a new window to allow resend, got %v", err)
	}
}

func TestCodeRequestLimitFailsOpen(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.OTP.RequestLimit = 1
		c.OTP.RequestWindow = time.Minute
	})
	ctx := context.Background()

	if _, err := env.engine.SignUp(ctx, SignUpRequest{Name: "Sam", Email: "sam@example.com", Password: "password-1"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	env.mr.Close()

	for i := 0; i < 3; i++ {
		if err := env.engine.ResendOTP(ctx, "sam@example.com"); err != nil {
			t.Fatalf("resend %d with redis down: %v", i, err)
		}
	}
}
