package wal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"main/internal/schema"
)

// PlaybackConfig controls journal playback behavior. Speed 0 means replay
// as fast as possible; 1 replays at recorded pace.
type PlaybackConfig struct {
	Dir             string
	FilePrefix      string
	Speed           float64
	DisableChecksum bool
	MaxPayloadSize  int
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid playback config: Dir is empty")
	}
	if c.Speed < 0 {
		return fmt.Errorf("invalid playback config: Speed must be >= 0")
	}
	if c.MaxPayloadSize < 0 {
		return fmt.Errorf("invalid playback config: MaxPayloadSize must be >= 0")
	}
	return nil
}

// Playback replays recorded events in file order. It implements the event
// source contract through Next, so the orchestrator consumes a recorded
// session exactly like a live stream.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock

	files   []string
	fileIdx int
	file    *os.File
	reader  *Reader
	prevTS  int64
}

// NewPlayback validates the config and creates a playback source.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Playback{cfg: cfg, clock: realClock{}}
	files, err := p.collectFiles()
	if err != nil {
		return nil, err
	}
	p.files = files
	return p, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Next returns the next recorded event, pacing against the recorded
// timestamps when Speed > 0. Returns io.EOF after the last record of the
// last segment.
func (p *Playback) Next(ctx context.Context) (schema.MarketEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return schema.MarketEvent{}, ctx.Err()
		default:
		}

		if p.reader == nil {
			if p.fileIdx >= len(p.files) {
				return schema.MarketEvent{}, io.EOF
			}
			file, err := os.Open(p.files[p.fileIdx])
			if err != nil {
				return schema.MarketEvent{}, err
			}
			p.file = file
			p.reader = NewReader(file, ReaderOptions{
				DisableChecksum: p.cfg.DisableChecksum,
				MaxPayloadSize:  p.cfg.MaxPayloadSize,
			})
		}

		event, err := p.reader.Next()
		if err == io.EOF {
			_ = p.file.Close()
			p.file = nil
			p.reader = nil
			p.fileIdx++
			continue
		}
		if err != nil {
			return schema.MarketEvent{}, fmt.Errorf("read %s: %w", p.files[p.fileIdx], err)
		}

		if err := p.pace(ctx, event.Timestamp.UnixNano()); err != nil {
			return schema.MarketEvent{}, err
		}
		return event, nil
	}
}

// Close releases the currently open segment, if any.
func (p *Playback) Close() error {
	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		p.reader = nil
		return err
	}
	return nil
}

func (p *Playback) collectFiles() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".wal") {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) pace(ctx context.Context, current int64) error {
	if p.cfg.Speed <= 0 || current <= 0 {
		p.prevTS = current
		return nil
	}
	if p.prevTS > 0 {
		if delta := current - p.prevTS; delta > 0 {
			sleep := time.Duration(float64(delta) / p.cfg.Speed)
			if err := p.clock.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}
	p.prevTS = current
	return nil
}
