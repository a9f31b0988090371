package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// Export is a point-in-time dump of every tier for one user.
type Export struct {
	User       string         `json:"user"`
	ExportedAt time.Time      `json:"exported_at"`
	Active     []model.Packet `json:"active"`
	ShortTerm  []model.Packet `json:"short_term"`
	MidTerm    []model.Packet `json:"mid_term"`
	LongTerm   []model.Packet `json:"long_term"`
	Archive    []model.Packet `json:"archive"`
}

// Import is a decoded import document. Records from an Export keep their
// tier; a bare JSON array carries no tier and lands in Replay, which goes
// through the normal write path.
type Import struct {
	Replay    []model.Packet
	ShortTerm []model.Packet
	MidTerm   []model.Packet
	LongTerm  []model.Packet
}

// Len returns the number of records across all sets.
func (im *Import) Len() int {
	return len(im.Replay) + len(im.ShortTerm) + len(im.MidTerm) + len(im.LongTerm)
}

// DecodeImport accepts either an Export document or a bare JSON array of
// packets. The active set is a subset of short-term and the archive is
// terminal, so neither is imported. Duplicates within a set are dropped;
// long-term records are keyed by text alone.
func DecodeImport(data []byte) (*Import, error) {
	var packets []model.Packet
	if err := json.Unmarshal(data, &packets); err == nil {
		return &Import{Replay: normalizeAll(packets, packetKey)}, nil
	}

	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	return &Import{
		ShortTerm: normalizeAll(exp.ShortTerm, packetKey),
		MidTerm:   normalizeAll(exp.MidTerm, midTermKey),
		LongTerm:  normalizeAll(exp.LongTerm, func(p model.Packet) string { return p.Text }),
	}, nil
}

func packetKey(p model.Packet) string {
	return fmt.Sprintf("%f|%s", p.Timestamp, p.Text)
}

func midTermKey(p model.Packet) string {
	if p.Expiry == nil {
		return packetKey(p)
	}
	return fmt.Sprintf("%s|%f", packetKey(p), *p.Expiry)
}

func normalizeAll(in []model.Packet, key func(model.Packet) string) []model.Packet {
	out := make([]model.Packet, 0, len(in))
	seen := map[string]bool{}
	for _, p := range in {
		if p.Text == "" || seen[key(p)] {
			continue
		}
		seen[key(p)] = true
		out = append(out, p.Normalize())
	}
	return out
}
