package elmo

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/homekit-elmo/econnect"
	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// Session is an authenticated handle to the alarm cloud.
type Session interface {
	Sectors(ctx context.Context) ([]econnect.Sector, error)
	Inputs(ctx context.Context) ([]econnect.Input, error)
	Alerts(ctx context.Context) ([]econnect.Alert, error)
	Lock(ctx context.Context, code string) error
	Unlock(ctx context.Context) error
	Arm(ctx context.Context, sectors []int) error
	Disarm(ctx context.Context, sectors []int) error
}

// Connector opens an authenticated session.
type Connector func(ctx context.Context, baseURL, domain, username, password string) (Session, error)

// Timings controls the pacing of arm and disarm commands.
type Timings struct {
	// Settle is the pause between the status check and the lock.
	Settle time.Duration
	// Process is the pause after the command, while the panel works on it.
	Process time.Duration
	// Backoff is multiplied by the attempt number between failed attempts.
	Backoff time.Duration
	Retries int
}

var DefaultTimings = Timings{
	Settle:  time.Second,
	Process: 2 * time.Second,
	Backoff: 2 * time.Second,
	Retries: 3,
}

// Commander runs the alarm workflows and turns their outcome into a Result.
type Commander struct {
	log     *log.Logger
	connect Connector
	timings Timings
	sleep   func(ctx context.Context, d time.Duration) error
	timer   backoff.Timer

	// requestTimeout bounds reads on the default connector, zero keeps the
	// client default.
	requestTimeout time.Duration
}

type Option func(*Commander)

func WithConnector(connect Connector) Option {
	return func(c *Commander) {
		c.connect = connect
	}
}

func WithTimings(t Timings) Option {
	return func(c *Commander) {
		c.timings = t
	}
}

// WithRequestTimeout sets how long a cloud API response may stall.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Commander) {
		c.requestTimeout = d
	}
}

func New(logger *log.Logger, opts ...Option) *Commander {
	c := &Commander{
		log:     logger,
		timings: DefaultTimings,
		sleep:   sleep,
	}
	c.connect = c.dial
	for _, opt := range opts {
		opt(c)
	}
	if c.timings.Retries < 1 {
		c.timings.Retries = 1
	}
	return c
}

// dial is the default Connector, backed by the e-Connect cloud API.
func (c *Commander) dial(ctx context.Context, baseURL, domain, username, password string) (Session, error) {
	cli := econnect.New(
		baseURL,
		domain,
		econnect.WithLogger(c.log.WithPrefix("econnect")),
		econnect.WithTimeout(c.requestTimeout),
	)
	if err := cli.Auth(ctx, username, password); err != nil {
		return nil, err
	}
	return cli, nil
}

// Authenticate resolves the system and opens a session. The session is nil
// unless the result is successful.
func (c *Commander) Authenticate(ctx context.Context, username, password, system, domain string) (Session, Result) {
	baseURL, err := BaseURL(system)
	if err != nil {
		c.log.Error("authentication failed", "system", system, "err", err)
		return nil, fail(err.Error())
	}

	sess, err := c.connect(ctx, baseURL, domain, username, password)
	if err != nil {
		c.log.Error("authentication failed", "system", system, "domain", domain, "err", err)
		return nil, fail(err.Error())
	}

	c.log.Debug("authenticated", "system", system, "domain", domain)
	return sess, ok("Autenticazione riuscita")
}

// Status reads sectors, inputs and alerts, stopping at the first failure.
func (c *Commander) Status(ctx context.Context, sess Session) Result {
	status, err := readStatus(ctx, sess)
	if err != nil {
		c.log.Error("could not get status", "err", err)
		return fail(err.Error())
	}

	res := ok("Stato ottenuto con successo")
	res.Status = &status
	return res
}

func readStatus(ctx context.Context, sess Session) (Status, error) {
	var status Status
	var err error
	if status.Sectors, err = sess.Sectors(ctx); err != nil {
		return Status{}, err
	}
	if status.Inputs, err = sess.Inputs(ctx); err != nil {
		return Status{}, err
	}
	if status.Alerts, err = sess.Alerts(ctx); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Ready tells whether the system can take commands, i.e. has no active alerts.
func (c *Commander) Ready(ctx context.Context, sess Session) Result {
	c.log.Debug("checking whether the system is ready")
	res := c.Status(ctx, sess)
	if !res.Success {
		return fail("Impossibile verificare lo stato: " + res.Message)
	}

	if active := res.Status.ActiveAlerts(); len(active) > 0 {
		c.log.Warn("active alerts found", "count", len(active))
		return fail(fmt.Sprintf("Sistema non pronto: %d allarmi attivi", len(active)))
	}
	return ok("Sistema pronto")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
