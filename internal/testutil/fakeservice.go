package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/roach88/streakgate/internal/rank"
)

// Cookie names used by FakeService.
const (
	CSRFCookie    = "next-auth.csrf-token"
	SessionCookie = "next-auth.session-token"
)

const dateLayout = "2006-01-02"

// FakeService is an in-process implementation of the streak service's HTTP
// contract. It keeps completed days and grace days per user, derives the
// streak by walking back from "today", and reports rank from a rank table.
//
// The exported hook fields inject misbehavior; their zero values give a
// compliant service.
type FakeService struct {
	// SignupStatus forces the signup response status when non-zero.
	SignupStatus int
	// LoginStatus forces the credentials callback status when non-zero.
	LoginStatus int
	// OmitCSRFToken drops csrfToken from the csrf response.
	OmitCSRFToken bool
	// DropSessionUser answers the session endpoint without a user.
	DropSessionUser bool
	// ResetFails makes reset-user answer 500.
	ResetFails bool
	// SimulateFails makes simulate-streak answer 500 for matching streaks.
	SimulateFails func(streak int) bool
	// GraceFails makes grace applications answer 500.
	GraceFails bool
	// GraceCountsAsCompleted includes backfilled days in totalCompletedDays.
	GraceCountsAsCompleted bool
	// Tamper may rewrite a progress payload before it is sent.
	Tamper func(progress map[string]any)

	mu       sync.Mutex
	mux      *http.ServeMux
	clock    func() time.Time
	table    rank.Table
	users    map[string]*fakeUser
	sessions map[string]string
	seq      int
	calls    []string
}

type fakeUser struct {
	password    string
	name        string
	completed   map[string]bool
	graced      map[string]bool
	graceTokens int
}

// NewFakeService creates a service whose calendar follows clock.
// A nil clock uses time.Now.
func NewFakeService(clock func() time.Time) *FakeService {
	if clock == nil {
		clock = time.Now
	}
	f := &FakeService{
		clock:    clock,
		table:    rank.DefaultTable,
		users:    make(map[string]*fakeUser),
		sessions: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/csrf", f.handleCSRF)
	mux.HandleFunc("POST /api/auth/signup", f.handleSignup)
	mux.HandleFunc("POST /api/auth/callback/credentials", f.handleCredentials)
	mux.HandleFunc("GET /api/auth/session", f.handleSession)
	mux.HandleFunc("POST /api/debug/reset-user", f.handleReset)
	mux.HandleFunc("POST /api/debug/simulate-streak", f.handleSimulate)
	mux.HandleFunc("GET /api/progress", f.handleProgress)
	mux.HandleFunc("POST /api/progress", f.handleGrace)
	f.mux = mux

	return f
}

// WithTable swaps the rank table the service reports from.
func (f *FakeService) WithTable(t rank.Table) *FakeService {
	f.table = t
	return f
}

// Start serves f on a local listener. Callers must Close the server.
func (f *FakeService) Start() *httptest.Server {
	return httptest.NewServer(f)
}

// AddUser registers a user directly, bypassing signup.
func (f *FakeService) AddUser(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = newFakeUser(password, "")
}

// Calls returns "METHOD /path" for every request served so far.
func (f *FakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// ServeHTTP implements http.Handler.
func (f *FakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
	f.mux.ServeHTTP(w, r)
}

func newFakeUser(password, name string) *fakeUser {
	return &fakeUser{
		password:    password,
		name:        name,
		completed:   make(map[string]bool),
		graced:      make(map[string]bool),
		graceTokens: 2,
	}
}

func (f *FakeService) nextToken(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *FakeService) today() time.Time {
	now := f.clock().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// currentUser resolves the session cookie. Callers hold f.mu.
func (f *FakeService) currentUser(r *http.Request) (*fakeUser, string) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, ""
	}
	email, ok := f.sessions[c.Value]
	if !ok {
		return nil, ""
	}
	return f.users[email], email
}

func (f *FakeService) handleCSRF(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	token := f.nextToken("csrf")
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: token, Path: "/", HttpOnly: true})
	if f.OmitCSRFToken {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"csrfToken": token})
}

func (f *FakeService) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid input"})
		return
	}
	if f.SignupStatus != 0 {
		writeJSON(w, f.SignupStatus, map[string]any{"error": "forced"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "User already exists"})
		return
	}
	f.users[body.Email] = newFakeUser(body.Password, body.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"id": f.nextToken("user"), "email": body.Email})
}

func (f *FakeService) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad form"})
		return
	}
	if f.LoginStatus != 0 {
		writeJSON(w, f.LoginStatus, map[string]any{"error": "forced"})
		return
	}

	cookie, err := r.Cookie(CSRFCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.PostForm.Get("csrfToken") {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "MissingCSRF"})
		return
	}

	f.mu.Lock()
	user, ok := f.users[r.PostForm.Get("email")]
	if !ok || user.password != r.PostForm.Get("password") {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "CredentialsSignin"})
		return
	}
	token := f.nextToken("session")
	f.sessions[token] = r.PostForm.Get("email")
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	callback := r.PostForm.Get("callbackUrl")
	if r.PostForm.Get("json") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"url": callback})
		return
	}
	http.Redirect(w, r, callback, http.StatusFound)
}

func (f *FakeService) handleSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	user, email := f.currentUser(r)
	f.mu.Unlock()

	if user == nil || f.DropSessionUser {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{"email": email, "name": user.name},
	})
}

func (f *FakeService) handleReset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, _ := f.currentUser(r)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	if f.ResetFails {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Reset failed"})
		return
	}
	user.completed = make(map[string]bool)
	user.graced = make(map[string]bool)
	user.graceTokens = 2
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User reset to Day 0"})
}

func (f *FakeService) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Streak      *int  `json:"streak"`
		SkipOffsets []int `json:"skipOffsets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Streak == nil || *body.Streak < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid streak value"})
		return
	}
	streak := *body.Streak

	f.mu.Lock()
	defer f.mu.Unlock()

	user, _ := f.currentUser(r)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	if f.SimulateFails != nil && f.SimulateFails(streak) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to simulate streak"})
		return
	}

	skip := make(map[int]bool, len(body.SkipOffsets))
	for _, off := range body.SkipOffsets {
		skip[off] = true
	}

	user.completed = make(map[string]bool)
	user.graced = make(map[string]bool)
	today := f.today()
	created := 0
	for i := 0; i < streak; i++ {
		if skip[i] {
			continue
		}
		user.completed[today.AddDate(0, 0, -i).Format(dateLayout)] = true
		created++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"streak":         streak,
		"expectedRank":   f.table.RankFor(streak).Name,
		"entriesCreated": created,
	})
}

func (f *FakeService) handleProgress(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	user, _ := f.currentUser(r)
	if user == nil {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	progress := f.progressLocked(user)
	f.mu.Unlock()

	if f.Tamper != nil {
		f.Tamper(progress)
	}
	writeJSON(w, http.StatusOK, progress)
}

// progressLocked builds the progress payload. Callers hold f.mu.
func (f *FakeService) progressLocked(user *fakeUser) map[string]any {
	today := f.today()

	streak := 0
	for d := today; ; d = d.AddDate(0, 0, -1) {
		key := d.Format(dateLayout)
		if !user.completed[key] && !user.graced[key] {
			break
		}
		streak++
	}

	total := len(user.completed)
	if f.GraceCountsAsCompleted {
		for day := range user.graced {
			if !user.completed[day] {
				total++
			}
		}
	}

	currentDay := 0
	if len(user.completed) > 0 {
		days := make([]string, 0, len(user.completed))
		for day := range user.completed {
			days = append(days, day)
		}
		sort.Strings(days)
		first, _ := time.Parse(dateLayout, days[0])
		currentDay = int(today.Sub(first).Hours()/24) + 1
	}

	var next any
	if hint := f.table.NextRankHintFor(streak); hint != nil {
		next = map[string]any{"nextRank": hint.NextRank, "daysNeeded": hint.DaysNeeded}
	}

	return map[string]any{
		"streakCount":        streak,
		"totalCompletedDays": total,
		"currentDay":         currentDay,
		"currentRank":        f.table.RankFor(streak).Name,
		"nextRankInfo":       next,
		"graceTokens":        user.graceTokens,
	}
}

func (f *FakeService) handleGrace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid body"})
		return
	}
	day, err := time.Parse(dateLayout, body.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid date"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	user, _ := f.currentUser(r)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	if f.GraceFails {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	if !day.Before(f.today()) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Grace applies to past days only"})
		return
	}
	if user.graceTokens <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No grace tokens remaining"})
		return
	}

	user.graceTokens--
	user.graced[body.Date] = true
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "graceTokensRemaining": user.graceTokens})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
