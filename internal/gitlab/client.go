// Package gitlab is a thin client for the source-control server's REST API.
// Calls never fail on non-2xx responses unless asked to; transport problems
// and timeouts come back as typed *Error values.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// PageSize is the page size requested from every paginated endpoint.
const PageSize = 100

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxPages = 50
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindTimeout
	KindStatus
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Sentinels matched by (*Error).Is, so callers can write errors.Is(err, ErrTimeout).
var (
	ErrTransport = errors.New("gitlab: transport failure")
	ErrTimeout   = errors.New("gitlab: request timed out")
	ErrStatus    = errors.New("gitlab: unexpected status")
	ErrDecode    = errors.New("gitlab: malformed payload")
)

type Error struct {
	Kind       ErrorKind
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("gitlab %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
	default:
		return fmt.Sprintf("gitlab %s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrStatus:
		return e.Kind == KindStatus
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// KindOf returns the kind of a gateway error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

// Response is the raw outcome of one call.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	// Timeout bounds every call, including connection setup. Default 10s.
	Timeout time.Duration
	// MaxPages caps a single pagination walk. Default 50.
	MaxPages int
	// RaiseForStatus turns non-2xx responses into KindStatus errors.
	RaiseForStatus bool
	// HTTPClient overrides the fasthttp client (tests, proxies).
	HTTPClient *fasthttp.Client
	// Logger receives notes about skipped malformed records.
	Logger Logger
}

// Client holds no per-call state and is safe for concurrent use.
type Client struct {
	baseURL  string
	token    string
	http     *fasthttp.Client
	timeout  time.Duration
	maxPages int
	raise    bool
	logger   Logger
}

// NewClient targets baseURL (e.g. "https://gitlab.example.org"); "/api/v4" is
// appended unless already present.
func NewClient(baseURL, token string, opts Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(baseURL, "/api/v4") {
		baseURL += "/api/v4"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &fasthttp.Client{
			Name:                   "taskpulse",
			ReadTimeout:            opts.Timeout,
			WriteTimeout:           opts.Timeout,
			MaxIdleConnDuration:    time.Minute,
			DisablePathNormalizing: true,
		}
	}
	return &Client{
		baseURL:  baseURL,
		token:    strings.TrimSpace(token),
		http:     hc,
		timeout:  opts.Timeout,
		maxPages: opts.MaxPages,
		raise:    opts.RaiseForStatus,
		logger:   opts.Logger,
	}
}

// Request performs one call against path (relative to /api/v4).
func (c *Client) Request(ctx context.Context, method, path string, params url.Values) (*Response, error) {
	path = strings.TrimLeft(path, "/")
	if err := ctx.Err(); err != nil {
		return nil, c.contextError(method, path, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.baseURL + "/" + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	req.SetRequestURI(uri)
	req.URI().DisablePathNormalizing = true
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		kind := KindTransport
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, Method: method, Path: path, Err: err}
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
	}
	if c.raise && !out.OK() {
		return out, statusError(method, path, out)
	}
	return out, nil
}

// Paginate walks path page by page (per_page=100, page=1,2,...) and hands the
// raw items of each page to fn. It stops at the first empty page, at the page
// cap, or when a page fails; items delivered before a failure stay delivered.
func (c *Client) Paginate(ctx context.Context, path string, params url.Values, fn func(items []json.RawMessage) error) error {
	for page := 1; page <= c.maxPages; page++ {
		q := url.Values{}
		for k, v := range params {
			q[k] = append([]string(nil), v...)
		}
		q.Set("per_page", strconv.Itoa(PageSize))
		q.Set("page", strconv.Itoa(page))

		resp, err := c.Request(ctx, fasthttp.MethodGet, path, q)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return statusError(fasthttp.MethodGet, path, resp)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(resp.Body, &items); err != nil {
			return &Error{Kind: KindDecode, Method: fasthttp.MethodGet, Path: path, StatusCode: resp.StatusCode, Err: err}
		}
		if len(items) == 0 {
			return nil
		}
		if err := fn(items); err != nil {
			return err
		}
	}
	c.logf("gitlab: %s reached the %d page cap", path, c.maxPages)
	return nil
}

func (c *Client) contextError(method, path string, err error) error {
	kind := KindTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Method: method, Path: path, Err: err}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func statusError(method, path string, resp *Response) *Error {
	return &Error{Kind: KindStatus, Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(resp.Body)}
}

func isTimeout(err error) bool {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
