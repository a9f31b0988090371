package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacketDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewPacket(PacketParams{Text: "hello"}, now)
	require.NoError(t, err)

	assert.Equal(t, DefaultSalience, p.Salience)
	assert.NotNil(t, p.Participants)
	assert.NotNil(t, p.Tags)
	assert.Nil(t, p.Expiry)
	assert.True(t, p.Time().Equal(now), "timestamp %v", p.Time())
}

func TestNewPacketEmptyText(t *testing.T) {
	_, err := NewPacket(PacketParams{}, time.Now())
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewPacketClampsSalience(t *testing.T) {
	high, low := 1.7, -0.3
	p, err := NewPacket(PacketParams{Text: "x", Salience: &high}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Salience)

	p, err = NewPacket(PacketParams{Text: "x", Salience: &low}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Salience)

	assert.Equal(t, 0.0, ClampSalience(math.NaN()))
}

func TestNewPacketTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewPacket(PacketParams{Text: "x", TTL: 7 * 24 * time.Hour}, now)
	require.NoError(t, err)
	exp, ok := p.ExpiryTime()
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), exp, time.Microsecond)

	explicit := now.Add(time.Hour)
	p, err = NewPacket(PacketParams{Text: "x", TTL: time.Minute, Expiry: &explicit}, now)
	require.NoError(t, err)
	exp, _ = p.ExpiryTime()
	assert.WithinDuration(t, explicit, exp, time.Microsecond, "explicit expiry wins over TTL")
}

func TestCloneIsIndependent(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	p, err := NewPacket(PacketParams{Text: "x", Tags: []string{"a"}, Expiry: &exp}, time.Now())
	require.NoError(t, err)

	c := p.Clone()
	c.Tags[0] = "b"
	*c.Expiry = 0
	assert.Equal(t, "a", p.Tags[0], "clone shares tags slice")
	assert.NotZero(t, *p.Expiry, "clone shares expiry pointer")
}

func TestHasTags(t *testing.T) {
	p := Packet{Text: "x", Tags: []string{"work", "meeting", "alex"}}
	assert.True(t, p.HasTags([]string{"work", "alex"}))
	assert.False(t, p.HasTags([]string{"work", "home"}))
	assert.True(t, p.HasTags(nil), "empty query matches")
}

func TestSecondsRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	assert.WithinDuration(t, now, FromSeconds(Seconds(now)), time.Microsecond)
}

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"24h": 24 * time.Hour,
		"30m": 30 * time.Minute,
		"60s": 60 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTTL("3w")
	assert.Error(t, err)
}
