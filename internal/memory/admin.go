package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/store"
)

// PurgeArchive removes archived records older than ageThresholdDays AND
// below salienceThreshold. It only runs on explicit request.
func (c *Coordinator) PurgeArchive(ageThresholdDays int, salienceThreshold float64) (int, error) {
	removed, err := c.archive.PurgeOldMemories(ageThresholdDays, salienceThreshold)
	if err != nil {
		return 0, err
	}
	c.logger.Info("memory: archive purged", "removed", removed, "days", ageThresholdDays, "salience", salienceThreshold)
	return removed, nil
}

// FetchArchiveByTags returns archived packets carrying every tag in tags. On
// a damaged archive it returns the readable matches and the error.
func (c *Coordinator) FetchArchiveByTags(tags []string) ([]model.Packet, error) {
	return c.archive.FetchByTags(tags)
}

// Stats reports per-tier counts and on-disk sizes. A damaged archive is
// counted up to the damage and flagged rather than failing the whole report.
func (c *Coordinator) Stats(ctx context.Context) (*store.Stats, error) {
	midCount, err := c.mid.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	archived, err := c.archive.All()
	damaged := errors.Is(err, store.ErrArchiveDamaged)
	if err != nil && !damaged {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if damaged {
		c.logger.Warn("memory: archive damaged", "path", c.archive.Path(), "err", err)
	}
	return &store.Stats{
		Root: c.cfg.Root,
		User: c.cfg.User,
		Tiers: []store.TierStats{
			{Tier: store.TierActive, Count: c.active.Len()},
			{Tier: store.TierShortTerm, Count: c.short.Len(), Path: c.short.Path(), SizeBytes: store.FileSize(c.short.Path())},
			{Tier: store.TierMidTerm, Count: midCount, Path: c.mid.Path(), SizeBytes: store.FileSize(c.mid.Path())},
			{Tier: store.TierLongTerm, Count: c.long.Len(), Path: c.long.Path(), SizeBytes: store.FileSize(c.long.Path())},
			{Tier: store.TierArchive, Count: len(archived), Path: c.archive.Path(), SizeBytes: c.archive.Size(), Damaged: damaged},
		},
	}, nil
}

// Export dumps every tier. Mid-Term holds only unexpired packets. When the
// archive is damaged the export is still returned, holding the readable part
// of the archive, together with an error wrapping store.ErrArchiveDamaged.
func (c *Coordinator) Export(ctx context.Context) (*store.Export, error) {
	mid, err := c.mid.FetchActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	archived, archiveErr := c.archive.All()
	if archiveErr != nil && !errors.Is(archiveErr, store.ErrArchiveDamaged) {
		return nil, fmt.Errorf("export: %w", archiveErr)
	}
	if archiveErr != nil {
		archiveErr = fmt.Errorf("export: %w", archiveErr)
	}
	return &store.Export{
		User:       c.cfg.User,
		ExportedAt: c.clock().UTC(),
		Active:     nonNil(c.active.Snapshot()),
		ShortTerm:  nonNil(c.short.All()),
		MidTerm:    nonNil(mid),
		LongTerm:   nonNil(c.long.All()),
		Archive:    nonNil(archived),
	}, archiveErr
}

func nonNil(p []model.Packet) []model.Packet {
	if p == nil {
		return []model.Packet{}
	}
	return p
}
