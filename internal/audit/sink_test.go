package audit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWriter collects flushed batches for inspection
type mockWriter struct {
	mu      sync.Mutex
	batches [][][]byte
}

func (m *mockWriter) WriteBatch(ctx context.Context, records [][]byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, records)
	return "test-key", nil
}

func (m *mockWriter) allRecords() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all [][]byte
	for _, batch := range m.batches {
		all = append(all, batch...)
	}
	return all
}

func testConfig() Config {
	return Config{
		BufferSize:    100,
		FlushSize:     10,
		FlushInterval: time.Hour, // only Close flushes during tests
		RedisKey:      "test:audit",
	}
}

func TestBufferedSink_FlushOnClose(t *testing.T) {
	writer := &mockWriter{}
	sink := NewBufferedSink(writer, testConfig())

	for i := 0; i < 3; i++ {
		sink.Enqueue(&Record{
			RequestID: "req-1",
			Identity:  "a1b2c3d4e5f60718",
			Decision:  "allowed",
		})
	}

	require.NoError(t, sink.Close(context.Background()))

	records := writer.allRecords()
	require.Len(t, records, 3)

	var rec Record
	require.NoError(t, json.Unmarshal(records[0], &rec))
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "allowed", rec.Decision)
}

func TestBufferedSink_LargeBacklogFlushesInBatches(t *testing.T) {
	writer := &mockWriter{}
	sink := NewBufferedSink(writer, testConfig())

	for i := 0; i < 25; i++ {
		sink.Enqueue(&Record{RequestID: "req"})
	}

	require.NoError(t, sink.Close(context.Background()))

	assert.Len(t, writer.allRecords(), 25)
	// FlushSize 10: Close drains in multiple writer calls.
	assert.GreaterOrEqual(t, len(writer.batches), 3)
}

func TestBufferedSink_DropsWhenFull(t *testing.T) {
	writer := &mockWriter{}
	cfg := testConfig()
	cfg.BufferSize = 2
	sink := NewBufferedSink(writer, cfg)

	for i := 0; i < 5; i++ {
		sink.Enqueue(&Record{RequestID: "req"})
	}

	require.NoError(t, sink.Close(context.Background()))

	// Overflow is dropped, never blocking the caller.
	assert.Len(t, writer.allRecords(), 2)
	assert.Equal(t, int64(3), sink.dropped.Load())
}

func TestBufferedSink_ConcurrentEnqueue(t *testing.T) {
	writer := &mockWriter{}
	cfg := testConfig()
	cfg.BufferSize = 10
	sink := NewBufferedSink(writer, cfg)

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				sink.Enqueue(&Record{RequestID: "req"})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, sink.Close(context.Background()))

	// Every enqueue is accounted for: shipped or counted as dropped.
	shipped := int64(len(writer.allRecords()))
	assert.Equal(t, int64(goroutines*perGoroutine), shipped+sink.dropped.Load())
}

func TestRedisSink(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	writer := &mockWriter{}
	sink := NewRedisSink(client, writer, testConfig())

	sink.Enqueue(&Record{RequestID: "req-redis", Decision: "denied_quota"})
	sink.Enqueue(&Record{RequestID: "req-redis-2", Decision: "allowed"})

	require.NoError(t, sink.Close(context.Background()))

	records := writer.allRecords()
	require.Len(t, records, 2)

	var rec Record
	require.NoError(t, json.Unmarshal(records[0], &rec))
	assert.Equal(t, "req-redis", rec.RequestID)
}

func TestNoopSink(t *testing.T) {
	sink := NewNoopSink()
	sink.Enqueue(&Record{RequestID: "ignored"})
	assert.NoError(t, sink.Close(context.Background()))
}

func TestMemoryBuffer(t *testing.T) {
	buf := newMemoryBuffer(2)
	ctx := context.Background()

	require.NoError(t, buf.push(ctx, []byte("a")))
	require.NoError(t, buf.push(ctx, []byte("b")))
	assert.ErrorIs(t, buf.push(ctx, []byte("c")), ErrBufferFull)

	items, err := buf.pop(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, items)

	items, err = buf.pop(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
