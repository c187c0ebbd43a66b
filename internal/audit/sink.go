package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"image_gateway/internal/utils"
)

// Config holds buffered sink settings
type Config struct {
	BufferSize    int           // in-memory queue size
	FlushSize     int           // flush after this many records
	FlushInterval time.Duration // flush after this much time
	RedisKey      string        // Redis list key; empty = memory buffer
}

// DefaultConfig returns sensible buffered sink defaults
func DefaultConfig() Config {
	return Config{
		BufferSize:    10000,
		FlushSize:     500,
		FlushInterval: 1 * time.Minute,
		RedisKey:      "gateway:audit",
	}
}

// BufferedSink stages records in a memory or Redis buffer and flushes
// batches through a BatchWriter on a worker goroutine.
type BufferedSink struct {
	buf         buffer
	writer      BatchWriter
	cfg         Config
	logger      *utils.Logger
	dropped     atomic.Int64
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewBufferedSink creates a sink over an in-memory buffer
func NewBufferedSink(writer BatchWriter, cfg Config) *BufferedSink {
	return newSink(newMemoryBuffer(cfg.BufferSize), writer, cfg)
}

// NewRedisSink creates a sink over a shared Redis list buffer
func NewRedisSink(client *redis.Client, writer BatchWriter, cfg Config) *BufferedSink {
	return newSink(newRedisBuffer(client, cfg.RedisKey), writer, cfg)
}

func newSink(buf buffer, writer BatchWriter, cfg Config) *BufferedSink {
	s := &BufferedSink{
		buf:         buf,
		writer:      writer,
		cfg:         cfg,
		logger:      utils.NewLogger("audit"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue stages a record without ever blocking the request path. When
// the buffer is full the record is dropped and counted.
func (s *BufferedSink) Enqueue(rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("Failed to encode audit record", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.buf.push(ctx, data); err != nil {
		s.logger.Warn("Dropped audit record", "dropped_total", s.dropped.Add(1), "error", err)
	}
}

// Close stops the worker and flushes whatever remains.
func (s *BufferedSink) Close(ctx context.Context) error {
	close(s.stopChan)
	select {
	case <-s.stoppedChan:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.flush(ctx)
}

func (s *BufferedSink) run() {
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.flush(ctx); err != nil {
				s.logger.Error("Audit flush failed", "error", err)
			}
			cancel()
		}
	}
}

func (s *BufferedSink) flush(ctx context.Context) error {
	for {
		records, err := s.buf.pop(ctx, s.cfg.FlushSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		if _, err := s.writer.WriteBatch(ctx, records); err != nil {
			return err
		}

		if len(records) < s.cfg.FlushSize {
			return nil
		}
	}
}
