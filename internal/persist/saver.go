// Package persist writes periodic world snapshots to disk.
package persist

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/pkg/encoding"
	"github.com/simforge/simforge/pkg/generic"
)

// DefaultInterval is the snapshot period when the config leaves it unset.
const DefaultInterval = 30 * time.Second

var ErrSaverRunning = errors.New("saver is already running")

// Source is the slice of the engine the saver reads.
type Source interface {
	Snapshot() []engine.EntityView
	Stats() engine.Stats
}

// File is the on-disk snapshot format.
type File struct {
	SavedAt  time.Time           `json:"saved_at"`
	Tick     uint64              `json:"tick"`
	Scene    string              `json:"scene,omitempty"`
	Entities []engine.EntityView `json:"entities"`
}

// Saver periodically snapshots the world into a JSON file. Writes go to a
// temp file first and are renamed into place, so readers never observe a
// half-written snapshot.
type Saver struct {
	source   Source
	path     string
	interval time.Duration
	logger   log.Log

	buffers *generic.Pool[*bytes.Buffer]
	codec   encoding.JSONCodec[File]

	running int32
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSaver(source Source, path string, interval time.Duration, logger log.Log) *Saver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.New(log.LevelInfo)
	}
	return &Saver{
		source:   source,
		path:     path,
		interval: interval,
		logger:   logger.With(log.String("component", "persist")),
		buffers:  generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }),
	}
}

// Start launches the snapshot loop.
func (s *Saver) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrSaverRunning
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("Saver started",
		log.String("path", s.path),
		log.Duration("interval", s.interval))
	return nil
}

// Stop halts the loop and writes one final snapshot.
func (s *Saver) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	if err := s.Save(); err != nil {
		s.logger.Error("Final snapshot failed", log.Error(err))
	}
	s.logger.Info("Saver stopped")
}

func (s *Saver) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Save(); err != nil {
				s.logger.Error("Snapshot failed", log.Error(err))
			}
		}
	}
}

// Save writes one snapshot now.
func (s *Saver) Save() error {
	stats := s.source.Stats()
	file := File{
		SavedAt:  time.Now(),
		Tick:     stats.Tick,
		Scene:    stats.Scene,
		Entities: s.source.Snapshot(),
	}

	buf := s.buffers.Get()
	buf.Reset()
	defer s.buffers.Put(buf)

	if err := s.codec.Encode(buf, file); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.logger.Debug("Snapshot written",
		log.Uint64("tick", file.Tick),
		log.Int("entities", len(file.Entities)))
	return nil
}

// Load reads a snapshot file back.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file File
	var codec encoding.JSONCodec[File]
	if err = codec.Decode(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}
