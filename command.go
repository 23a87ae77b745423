package elmo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/homekit-elmo/econnect"
	"github.com/cenkalti/backoff/v4"
)

type command struct {
	name    string
	send    func(Session, context.Context, []int) error
	success string
	failure string
}

var (
	armCommand = command{
		name:    "arm",
		send:    Session.Arm,
		success: "Sistema armato con successo",
		failure: "Errore nell'armare il sistema dopo %d tentativi: %v",
	}
	disarmCommand = command{
		name:    "disarm",
		send:    Session.Disarm,
		success: "Sistema disarmato con successo",
		failure: "Errore nel disarmare il sistema dopo %d tentativi: %v",
	}
)

// Arm arms the given sectors, or all of them if sectors is empty.
func (c *Commander) Arm(ctx context.Context, sess Session, code string, sectors []int) Result {
	return c.run(ctx, sess, armCommand, code, sectors)
}

// Disarm disarms the given sectors, or all of them if sectors is empty.
func (c *Commander) Disarm(ctx context.Context, sess Session, code string, sectors []int) Result {
	return c.run(ctx, sess, disarmCommand, code, sectors)
}

func (c *Commander) run(ctx context.Context, sess Session, cmd command, code string, sectors []int) Result {
	retries := c.timings.Retries
	attempt := 0

	bo := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: c.timings.Backoff}, uint64(retries-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(func() error {
		attempt++
		log := c.log.With("cmd", cmd.name, "attempt", fmt.Sprintf("%d/%d", attempt, retries))
		log.Debug("sending command")

		// best effort, only useful for diagnostics.
		if _, err := readStatus(ctx, sess); err != nil {
			log.Warn("could not check system status", "err", err)
		}

		if err := c.sleep(ctx, c.timings.Settle); err != nil {
			return backoff.Permanent(err)
		}

		if err := withLock(ctx, sess, code, func() error {
			log.Debug("lock acquired", "sectors", sectors)
			return cmd.send(sess, ctx, sectors)
		}); err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		log.Debug("command sent")

		if err := c.sleep(ctx, c.timings.Process); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, bo, func(err error, d time.Duration) {
		c.log.Warn("attempt failed", "cmd", cmd.name, "attempt", attempt, "retry_in", d, "err", err)
	}, c.timer)
	if err != nil {
		c.log.Error("all attempts failed", "cmd", cmd.name, "attempts", attempt, "err", err)
		return fail(fmt.Sprintf(cmd.failure, attempt, err))
	}
	return ok(cmd.success)
}

// withLock holds the command lock while fn runs and always releases it.
func withLock(ctx context.Context, sess Session, code string, fn func() error) (err error) {
	if err := sess.Lock(ctx, code); err != nil {
		return err
	}
	defer func() {
		if uerr := sess.Unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

// isPermanent reports errors that no amount of retrying will fix.
func isPermanent(err error) bool {
	return errors.Is(err, econnect.ErrInvalidCode) ||
		errors.Is(err, econnect.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}
