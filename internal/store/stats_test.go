package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/model"
)

func TestListNamespaces(t *testing.T) {
	root := t.TempDir()
	clock := newFakeClock()
	now := clock.Now()

	st := NewShortTermMemory(TierPath(root, TierShortTerm, "alice"))
	require.NoError(t, st.Add(packetAt(t, "hi", now, 0.5)))

	m, err := NewMidTermMemory(TierPath(root, TierMidTerm, "bob"), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, m.Add(context.Background(), packetAt(t, "later", now, 0.5), now.Add(time.Hour)))
	require.NoError(t, m.Close())

	a, err := NewArchiveMemory(TierPath(root, TierArchive, "alice"))
	require.NoError(t, err)
	require.NoError(t, a.Store([]model.Packet{packetAt(t, "old", now, 0.5)}))

	got, err := ListNamespaces(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got)
}

func TestTierPath(t *testing.T) {
	cases := map[string]string{
		TierShortTerm: filepath.Join("r", "short_term", "u.json"),
		TierMidTerm:   filepath.Join("r", "mid_term", "u.db"),
		TierLongTerm:  filepath.Join("r", "long_term", "u.json"),
		TierArchive:   filepath.Join("r", "archive", "u.jsonl.gz"),
	}
	for tier, want := range cases {
		assert.Equal(t, want, TierPath("r", tier, "u"), tier)
	}
}

func TestDecodeImportBareArray(t *testing.T) {
	im, err := DecodeImport([]byte(`[{"timestamp":1,"text":"a","participants":null,"tags":["x"],"salience":2},{"timestamp":2,"text":""}]`))
	require.NoError(t, err)

	require.Len(t, im.Replay, 1, "empty text dropped")
	assert.Equal(t, 1.0, im.Replay[0].Salience)
	assert.NotNil(t, im.Replay[0].Participants)
	assert.Empty(t, im.ShortTerm)
	assert.Empty(t, im.LongTerm)
}

func TestDecodeImportKeepsTiers(t *testing.T) {
	doc := []byte(`{"user":"u",
		"short_term":[{"timestamp":1,"text":"a","salience":0.9},{"timestamp":1,"text":"a","salience":0.9}],
		"mid_term":[{"timestamp":1,"text":"r","expiry":50},{"timestamp":1,"text":"r","expiry":60}],
		"long_term":[{"timestamp":1,"text":"a","salience":0.67},{"timestamp":2,"text":"b"}],
		"archive":[{"timestamp":3,"text":"c"}]}`)
	im, err := DecodeImport(doc)
	require.NoError(t, err)

	assert.Empty(t, im.Replay)
	assert.Equal(t, []string{"a"}, texts(im.ShortTerm))
	assert.Len(t, im.MidTerm, 2, "different expiries are distinct rows")
	require.Equal(t, []string{"a", "b"}, texts(im.LongTerm), "same text in another tier is kept")
	assert.Equal(t, 0.67, im.LongTerm[0].Salience)
	assert.Equal(t, 5, im.Len())
}

func TestDecodeImportInvalid(t *testing.T) {
	_, err := DecodeImport([]byte("nope"))
	assert.Error(t, err)
}
