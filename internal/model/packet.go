// Package model defines the memory packet shared by every tier.
package model

import (
	"errors"
	"math"
	"time"
)

// Salience thresholds and adjustments used across tiers.
const (
	DefaultSalience = 0.5

	// PromoteSalience is the minimum salience that sends a packet to long-term memory.
	PromoteSalience = 0.8

	// DemoteSalience is the long-term floor; entries decayed below it are archived.
	DemoteSalience = 0.2

	ReinforceStep = 0.1
	DecayFactor   = 0.99
)

// ErrEmptyText is returned when a packet is created without content.
var ErrEmptyText = errors.New("packet text is required")

// Packet is one discrete memory: a textual event with participants, tags,
// salience and an optional expiry. Timestamps are seconds since the epoch so
// records stay readable by older stores.
type Packet struct {
	Timestamp    float64  `json:"timestamp"`
	Text         string   `json:"text"`
	Participants []string `json:"participants"`
	Tags         []string `json:"tags"`
	Salience     float64  `json:"salience"`
	Expiry       *float64 `json:"expiry,omitempty"`
}

// PacketParams holds the caller-supplied fields of a new packet.
type PacketParams struct {
	Text         string
	Participants []string
	Tags         []string
	Salience     *float64 // nil means DefaultSalience
	Expiry       *time.Time

	// TTL is an expiry relative to the stamp, ignored when Expiry is set.
	TTL time.Duration
}

// NewPacket builds a packet stamped at now. Salience defaults to 0.5 and is
// clamped to [0,1]; participant and tag slices are copied. A positive TTL
// sets the expiry to now+TTL unless Expiry is given.
func NewPacket(p PacketParams, now time.Time) (Packet, error) {
	if p.Text == "" {
		return Packet{}, ErrEmptyText
	}
	salience := DefaultSalience
	if p.Salience != nil {
		salience = *p.Salience
	}
	pk := Packet{
		Timestamp:    Seconds(now),
		Text:         p.Text,
		Participants: cloneStrings(p.Participants),
		Tags:         cloneStrings(p.Tags),
		Salience:     ClampSalience(salience),
	}
	switch {
	case p.Expiry != nil:
		exp := Seconds(*p.Expiry)
		pk.Expiry = &exp
	case p.TTL > 0:
		exp := Seconds(now.Add(p.TTL))
		pk.Expiry = &exp
	}
	return pk, nil
}

// Clone returns a deep copy so tiers never share slices or the expiry pointer.
func (p Packet) Clone() Packet {
	c := p
	c.Participants = cloneStrings(p.Participants)
	c.Tags = cloneStrings(p.Tags)
	if p.Expiry != nil {
		exp := *p.Expiry
		c.Expiry = &exp
	}
	return c
}

// Normalize fills nil slices and clamps salience. Used on records read from disk.
func (p Packet) Normalize() Packet {
	if p.Participants == nil {
		p.Participants = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Salience = ClampSalience(p.Salience)
	return p
}

// Time returns the creation time.
func (p Packet) Time() time.Time {
	return FromSeconds(p.Timestamp)
}

// ExpiryTime returns the expiry and whether one is set.
func (p Packet) ExpiryTime() (time.Time, bool) {
	if p.Expiry == nil {
		return time.Time{}, false
	}
	return FromSeconds(*p.Expiry), true
}

// HasTags reports whether every tag in want is present on the packet.
func (p Packet) HasTags(want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(p.Tags))
	for _, t := range p.Tags {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// ClampSalience bounds s to [0,1]. NaN becomes 0.
func ClampSalience(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Seconds converts t to fractional seconds since the epoch.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromSeconds converts fractional epoch seconds back to a time.
func FromSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
