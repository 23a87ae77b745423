package econnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/sync/cio"
	logp "github.com/charmbracelet/log"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "econnect",
})

const (
	ElmoEConnect = "https://connect.elmospa.com"
	IESSMetronet = "https://metronet.iessonline.com"
)

const timeout = 15 * time.Second

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid code")
	ErrUnauthorized       = errors.New("session is not authorized")
	ErrCommandFailed      = errors.New("command was not accepted by the panel")
	ErrLockNotHeld        = errors.New("lock is not held")
	ErrForbidden          = errors.New("forbidden")
)

const (
	cmdArm    = 1
	cmdDisarm = 2
)

const (
	classAll    = 1
	classSector = 9
	classInput  = 10
)

const (
	pathLogin       = "/api/login"
	pathLock        = "/api/panel/syncLogin"
	pathUnlock      = "/api/panel/syncLogout"
	pathSendCommand = "/api/panel/syncSendCommand"
	pathStrings     = "/api/strings"
	pathAreas       = "/api/areas"
	pathInputs      = "/api/inputs"
	pathStatusAdv   = "/api/statusadv"
)

type Client struct {
	http    *http.Client
	baseURL string
	domain  string
	timeout time.Duration
	log     *logp.Logger

	session string
	locked  bool
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(l *logp.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithTimeout sets how long a single response body read may stall.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(baseURL, domain string, opts ...Option) *Client {
	cli := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		domain:  domain,
		timeout: timeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Auth opens a session with the given credentials.
func (c *Client) Auth(ctx context.Context, username, password string) error {
	c.log.Debug("auth", "user", username, "domain", c.domain)
	q := url.Values{}
	q.Set("username", username)
	q.Set("password", password)
	if c.domain != "" {
		q.Set("domain", c.domain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathLogin+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("could not auth: %w", err)
	}

	var resp struct {
		SessionID string `json:"SessionId"`
		Redirect  bool   `json:"Redirect"`
	}
	if err := c.do(req, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
			return fmt.Errorf("could not auth: %w", ErrInvalidCredentials)
		}
		return fmt.Errorf("could not auth: %w", err)
	}
	if resp.SessionID == "" {
		return fmt.Errorf("could not auth: %w", ErrInvalidCredentials)
	}

	c.session = resp.SessionID
	return nil
}

// Lock acquires the panel command lock using the user code.
func (c *Client) Lock(ctx context.Context, code string) error {
	c.log.Debug("lock")
	if err := c.post(ctx, pathLock, url.Values{
		"userId":   {"1"},
		"password": {code},
	}, nil); err != nil {
		if errors.Is(err, ErrForbidden) {
			return fmt.Errorf("could not lock: %w", ErrInvalidCode)
		}
		return fmt.Errorf("could not lock: %w", err)
	}
	c.locked = true
	return nil
}

// Unlock releases the panel command lock.
func (c *Client) Unlock(ctx context.Context) error {
	c.log.Debug("unlock")
	if !c.locked {
		return ErrLockNotHeld
	}
	c.locked = false
	if err := c.post(ctx, pathUnlock, url.Values{}, nil); err != nil {
		return fmt.Errorf("could not unlock: %w", err)
	}
	return nil
}

// Arm arms the given sectors, or the whole system if sectors is empty.
// The lock must be held.
func (c *Client) Arm(ctx context.Context, sectors []int) error {
	c.log.Debug("arm", "sectors", sectors)
	if err := c.send(ctx, cmdArm, sectors); err != nil {
		return fmt.Errorf("could not arm %v: %w", sectors, err)
	}
	return nil
}

// Disarm disarms the given sectors, or the whole system if sectors is empty.
// The lock must be held.
func (c *Client) Disarm(ctx context.Context, sectors []int) error {
	c.log.Debug("disarm", "sectors", sectors)
	if err := c.send(ctx, cmdDisarm, sectors); err != nil {
		return fmt.Errorf("could not disarm %v: %w", sectors, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, cmd int, sectors []int) error {
	if !c.locked {
		return ErrLockNotHeld
	}

	payloads := []url.Values{commandPayload(cmd, classAll, 1)}
	if len(sectors) > 0 {
		payloads = payloads[:0]
		for _, sector := range sectors {
			payloads = append(payloads, commandPayload(cmd, classSector, sector))
		}
	}

	for _, payload := range payloads {
		var resp []struct {
			CommandID  int  `json:"CommandId"`
			Successful bool `json:"Successful"`
		}
		if err := c.post(ctx, pathSendCommand, payload, &resp); err != nil {
			return err
		}
		if len(resp) == 0 || !resp[0].Successful {
			return fmt.Errorf("%w: %s", ErrCommandFailed, payload.Get("ElementsIndexes"))
		}
	}
	return nil
}

func commandPayload(cmd, class, index int) url.Values {
	return url.Values{
		"CommandType":     {strconv.Itoa(cmd)},
		"ElementsClass":   {strconv.Itoa(class)},
		"ElementsIndexes": {strconv.Itoa(index)},
	}
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if c.session == "" {
		return ErrUnauthorized
	}
	form.Set("sessionId", c.session)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("SessionId", c.session)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body := cio.TimeoutReader(resp.Body, c.timeout)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return nil
}
