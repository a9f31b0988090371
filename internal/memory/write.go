package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/store"
)

// TierError is one tier's failure during a fan-out write.
type TierError struct {
	Tier string
	Err  error
}

func (e TierError) Error() string { return e.Tier + ": " + e.Err.Error() }

func (e TierError) Unwrap() error { return e.Err }

// FanoutError reports the tiers that failed during AddPacket. Tiers not
// listed were written; there is no cross-tier rollback.
type FanoutError struct {
	Errors []TierError
}

func (e *FanoutError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, te := range e.Errors {
		parts[i] = te.Error()
	}
	return "add packet: " + strings.Join(parts, "; ")
}

// Unwrap exposes every tier error to errors.Is and errors.As.
func (e *FanoutError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, te := range e.Errors {
		out[i] = te
	}
	return out
}

// Failed reports whether tier is among the failures.
func (e *FanoutError) Failed(tier string) bool {
	for _, te := range e.Errors {
		if te.Tier == tier {
			return true
		}
	}
	return false
}

// AddPacket writes p to Active and Short-Term, to Mid-Term when it has an
// expiry, and reinforces it into Long-Term when its salience is at least
// model.PromoteSalience. Each tier is written independently; a *FanoutError
// lists the ones that failed.
func (c *Coordinator) AddPacket(ctx context.Context, p model.Packet) error {
	if p.Text == "" {
		return model.ErrEmptyText
	}
	p = p.Normalize()

	var failed []TierError
	c.active.Push(p)

	if err := c.short.Add(p); err != nil {
		failed = append(failed, TierError{Tier: store.TierShortTerm, Err: err})
	}
	if expiry, ok := p.ExpiryTime(); ok {
		if err := c.mid.Add(ctx, p, expiry); err != nil {
			failed = append(failed, TierError{Tier: store.TierMidTerm, Err: err})
		}
	}
	if p.Salience >= model.PromoteSalience {
		if _, err := c.long.Reinforce(p); err != nil {
			failed = append(failed, TierError{Tier: store.TierLongTerm, Err: err})
		}
	}

	if len(failed) > 0 {
		ferr := &FanoutError{Errors: failed}
		c.logger.Warn("memory: partial write", "err", ferr)
		return ferr
	}
	return nil
}

// AddEvent builds a packet stamped with the current time and writes it
// through AddPacket.
func (c *Coordinator) AddEvent(ctx context.Context, params model.PacketParams) (model.Packet, error) {
	p, err := model.NewPacket(params, c.clock())
	if err != nil {
		return model.Packet{}, err
	}
	return p, c.AddPacket(ctx, p)
}

// Import restores a decoded document. Records keep their tier: short-term
// and mid-term records are restored with their timestamps and expiries, and
// long-term records are upserted with their stored salience instead of going
// through the write path. Only a bare packet list is replayed via AddPacket.
// Records already present are skipped, so importing twice is harmless. It
// returns how many records were written.
func (c *Coordinator) Import(ctx context.Context, im *store.Import) (int, error) {
	var errs []error
	written := 0

	for _, p := range im.Replay {
		if err := c.AddPacket(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("import %q: %w", truncate(p.Text, 40), err))
			continue
		}
		written++
	}

	n, err := c.short.Restore(im.ShortTerm)
	if err != nil {
		errs = append(errs, TierError{Tier: store.TierShortTerm, Err: err})
	}
	written += n

	n, err = c.mid.Restore(ctx, im.MidTerm)
	if err != nil {
		errs = append(errs, TierError{Tier: store.TierMidTerm, Err: err})
	}
	written += n

	if err := c.long.Restore(im.LongTerm); err != nil {
		errs = append(errs, TierError{Tier: store.TierLongTerm, Err: err})
	} else {
		written += len(im.LongTerm)
	}

	c.logger.Info("memory: import finished", "records", im.Len(), "written", written)
	return written, errors.Join(errs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
