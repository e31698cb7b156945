// Package session issues JSON and form requests against the service under
// test on behalf of one logical user session.
//
// Cookie state lives in an explicit Session value owned by the caller and
// passed to every Send. The Client itself is stateless between calls, so two
// sessions can share one Client without seeing each other's cookies.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Content types understood by Send.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

const defaultTimeout = 30 * time.Second

// Session owns the cookie jar for one authenticated user.
type Session struct {
	jar *cookiejar.Jar
}

// NewSession creates an empty session.
func NewSession() (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Session{jar: jar}, nil
}

// Cookies returns the cookies the session would send to u.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	return s.jar.Cookies(u)
}

// Request describes one call. Body is JSON-encoded unless the Content-Type
// header asks for a form, in which case Body must be url.Values or
// map[string]string.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response is a decoded reply. Body is never nil: empty or non-JSON payloads
// decode to an empty map so callers can judge by Status alone.
type Response struct {
	Status int
	Body   map[string]any
	Raw    []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Bool returns Body[key] when it is a JSON boolean, false otherwise.
func (r Response) Bool(key string) bool {
	v, _ := r.Body[key].(bool)
	return v
}

// String returns Body[key] when it is a JSON string.
func (r Response) String(key string) (string, bool) {
	v, ok := r.Body[key].(string)
	return v, ok
}

// Client sends requests relative to a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each call. Zero or negative leaves the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for baseURL (scheme and host, optional path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			// 302 from the credentials callback must reach the caller.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get is shorthand for a body-less GET.
func (c *Client) Get(ctx context.Context, sess *Session, path string) (Response, error) {
	return c.Send(ctx, sess, Request{Method: http.MethodGet, Path: path})
}

// PostJSON is shorthand for a JSON POST. A nil body sends no payload.
func (c *Client) PostJSON(ctx context.Context, sess *Session, path string, body any) (Response, error) {
	return c.Send(ctx, sess, Request{Method: http.MethodPost, Path: path, Body: body})
}

// PostForm is shorthand for a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, sess *Session, path string, form url.Values) (Response, error) {
	return c.Send(ctx, sess, Request{
		Method:  http.MethodPost,
		Path:    path,
		Body:    form,
		Headers: map[string]string{"Content-Type": ContentTypeForm},
	})
}

// Send performs one request. Only transport failures and unencodable bodies
// are returned as errors; any HTTP status, including 4xx and 5xx, comes back
// as a Response.
func (c *Client) Send(ctx context.Context, sess *Session, req Request) (Response, error) {
	target, err := url.Parse(c.baseURL + req.Path)
	if err != nil {
		return Response{}, fmt.Errorf("invalid path %q: %w", req.Path, err)
	}

	headers := http.Header{}
	headers.Set("Accept", ContentTypeJSON)
	for k, v := range req.Headers {
		headers.Set(k, v)
	}

	payload, err := encodeBody(req.Body, headers)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header = headers

	if sess != nil {
		for _, cookie := range sess.jar.Cookies(target) {
			httpReq.AddCookie(cookie)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	if sess != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			sess.jar.SetCookies(target, cookies)
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: read body: %w", req.Method, req.Path, err)
	}

	c.logger.Debug("http call",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"bytes", len(raw),
	)

	return Response{
		Status: resp.StatusCode,
		Body:   decodeObject(raw),
		Raw:    raw,
	}, nil
}

// encodeBody serializes body according to the Content-Type header, setting
// the JSON content type when none was given.
func encodeBody(body any, headers http.Header) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}

	if strings.HasPrefix(headers.Get("Content-Type"), ContentTypeForm) {
		switch v := body.(type) {
		case url.Values:
			return strings.NewReader(v.Encode()), nil
		case map[string]string:
			form := url.Values{}
			for key, val := range v {
				form.Set(key, val)
			}
			return strings.NewReader(form.Encode()), nil
		default:
			return nil, fmt.Errorf("form body must be url.Values or map[string]string, got %T", body)
		}
	}

	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", ContentTypeJSON)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode JSON body: %w", err)
	}
	return bytes.NewReader(data), nil
}

// decodeObject returns the JSON object in raw, or an empty map when raw is
// empty, malformed, or not an object.
func decodeObject(raw []byte) map[string]any {
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return out
	}
	return obj
}
