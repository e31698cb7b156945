// Package fixture prepares the service under test for a run and wraps its
// debug control endpoints.
//
// Setup (EnsureTestUser, Login, ResetUser) returns *SetupError on failure;
// a run cannot proceed without an authenticated, freshly reset user. The
// control wrappers (SimulateStreak, Progress, ApplyGrace) return the raw
// response and leave judging it to the caller.
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/roach88/streakgate/internal/session"
)

// Endpoints consumed by the harness.
const (
	PathCSRF        = "/api/auth/csrf"
	PathSignup      = "/api/auth/signup"
	PathCredentials = "/api/auth/callback/credentials"
	PathSession     = "/api/auth/session"
	PathResetUser   = "/api/debug/reset-user"
	PathSimulate    = "/api/debug/simulate-streak"
	PathProgress    = "/api/progress"
)

// DefaultUserName is the display name used when provisioning the test user.
const DefaultUserName = "Rank Test"

// SetupError reports a failed provisioning, login or reset step.
type SetupError struct {
	Step   string         // "signup", "csrf", "login", "session", "reset"
	Status int            // HTTP status, 0 for transport failures
	Body   map[string]any // decoded response body, if any
	Err    error          // transport error, if any
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	if msg, ok := e.Body["error"].(string); ok && msg != "" {
		return fmt.Sprintf("%s failed: status %d: %s", e.Step, e.Status, msg)
	}
	return fmt.Sprintf("%s failed: status %d", e.Step, e.Status)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Controller drives provisioning and the debug control endpoints.
type Controller struct {
	client       *session.Client
	logger       *slog.Logger
	userName     string
	callbackPath string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserName overrides the name sent at signup.
func WithUserName(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.userName = name
		}
	}
}

// New creates a Controller that talks through client.
func New(client *session.Client, opts ...Option) *Controller {
	c := &Controller{
		client:       client,
		logger:       slog.Default(),
		userName:     DefaultUserName,
		callbackPath: "/today",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Setup provisions the user, logs in and resets state, stopping at the first failure.
func (c *Controller) Setup(ctx context.Context, sess *session.Session, email, password string) error {
	if err := c.EnsureTestUser(ctx, sess, email, password); err != nil {
		return err
	}
	if err := c.Login(ctx, sess, email, password); err != nil {
		return err
	}
	return c.ResetUser(ctx, sess)
}

// EnsureTestUser signs the user up. An existing account (409) counts as success.
func (c *Controller) EnsureTestUser(ctx context.Context, sess *session.Session, email, password string) error {
	resp, err := c.client.PostJSON(ctx, sess, PathSignup, map[string]string{
		"email":    email,
		"password": password,
		"name":     c.userName,
	})
	if err != nil {
		return &SetupError{Step: "signup", Err: err}
	}

	switch resp.Status {
	case http.StatusOK, http.StatusCreated:
		c.logger.Info("test user created", "email", email)
		return nil
	case http.StatusConflict:
		c.logger.Info("test user already exists", "email", email)
		return nil
	default:
		return &SetupError{Step: "signup", Status: resp.Status, Body: resp.Body}
	}
}

// Login performs the CSRF-protected credentials login and confirms the
// session carries a user.
func (c *Controller) Login(ctx context.Context, sess *session.Session, email, password string) error {
	csrf, err := c.client.Get(ctx, sess, PathCSRF)
	if err != nil {
		return &SetupError{Step: "csrf", Err: err}
	}
	token, ok := csrf.String("csrfToken")
	if csrf.Status != http.StatusOK || !ok || token == "" {
		return &SetupError{Step: "csrf", Status: csrf.Status, Body: csrf.Body}
	}

	form := url.Values{}
	form.Set("csrfToken", token)
	form.Set("email", email)
	form.Set("password", password)
	form.Set("callbackUrl", c.client.BaseURL()+c.callbackPath)
	form.Set("json", "true")

	resp, err := c.client.PostForm(ctx, sess, PathCredentials, form)
	if err != nil {
		return &SetupError{Step: "login", Err: err}
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusFound {
		return &SetupError{Step: "login", Status: resp.Status, Body: resp.Body}
	}

	current, err := c.client.Get(ctx, sess, PathSession)
	if err != nil {
		return &SetupError{Step: "session", Err: err}
	}
	if !hasUser(current.Body) {
		return &SetupError{Step: "session", Status: current.Status, Body: current.Body}
	}

	c.logger.Info("logged in", "email", email)
	return nil
}

// ResetUser clears the user's streak state.
func (c *Controller) ResetUser(ctx context.Context, sess *session.Session) error {
	resp, err := c.client.PostJSON(ctx, sess, PathResetUser, nil)
	if err != nil {
		return &SetupError{Step: "reset", Err: err}
	}
	if resp.Status != http.StatusOK || !resp.Bool("success") {
		return &SetupError{Step: "reset", Status: resp.Status, Body: resp.Body}
	}
	c.logger.Info("user reset")
	return nil
}

// SimulateStreak asks the service to fabricate completions for the last
// streak days, omitting the day offsets in skip (0 is today).
func (c *Controller) SimulateStreak(ctx context.Context, sess *session.Session, streak int, skip []int) (session.Response, error) {
	body := map[string]any{"streak": streak}
	if len(skip) > 0 {
		body["skipOffsets"] = skip
	}
	return c.client.PostJSON(ctx, sess, PathSimulate, body)
}

// Progress fetches and parses the current progress.
func (c *Controller) Progress(ctx context.Context, sess *session.Session) (StreakState, session.Response, error) {
	resp, err := c.client.Get(ctx, sess, PathProgress)
	if err != nil {
		return StreakState{}, resp, err
	}
	return ParseStreakState(resp.Body), resp, nil
}

// ApplyGrace backfills date (YYYY-MM-DD).
func (c *Controller) ApplyGrace(ctx context.Context, sess *session.Session, date string) (session.Response, error) {
	return c.client.PostJSON(ctx, sess, PathProgress, map[string]string{"date": date})
}

func hasUser(body map[string]any) bool {
	user, ok := body["user"]
	if !ok || user == nil {
		return false
	}
	if m, isMap := user.(map[string]any); isMap {
		return len(m) > 0
	}
	return true
}
