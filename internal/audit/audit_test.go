package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// failingSink always errors.
type failingSink struct{}

func (failingSink) Append(context.Context, *Entry) error { return errors.New("sink down") }
func (failingSink) Close() error                         { return nil }

// recordingSink captures appended entries.
type recordingSink struct {
	entries []*Entry
}

func (s *recordingSink) Append(_ context.Context, e *Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestLog_RecordStampsEntry(t *testing.T) {
	sink := &recordingSink{}
	log := NewLog(sink, zaptest.NewLogger(t))

	log.Record(context.Background(), &Entry{
		Category: CategoryRegistration,
		Action:   "handshake_completed",
		PartyID:  "TNM",
	})

	require.Len(t, sink.entries, 1)
	got := sink.entries[0]
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "success", got.Outcome)
}

func TestLog_RecordSwallowsSinkFailure(t *testing.T) {
	log := NewLog(failingSink{}, zaptest.NewLogger(t))

	// Must not panic and must not surface the error.
	log.Record(context.Background(), &Entry{
		Category: CategoryParty,
		Action:   "party_removed",
	})
}

func TestLog_RecordIgnoresNil(t *testing.T) {
	log := NewLog(&recordingSink{}, zaptest.NewLogger(t))
	log.Record(context.Background(), nil)
}

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	log := NewLog(sink, zaptest.NewLogger(t))
	ctx := context.Background()
	log.Record(ctx, &Entry{Category: CategoryRegistration, Action: "handshake_started", PartyID: "TNM"})
	log.Record(ctx, &Entry{Category: CategoryCredentials, Action: "token_rotated", PartyID: "TNM"})
	require.NoError(t, log.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, "handshake_started", lines[0].Action)
	assert.Equal(t, "token_rotated", lines[1].Action)
}

func TestRedisSink_AppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sink := NewRedisSink(client, zaptest.NewLogger(t))
	defer func() { _ = sink.Close() }()

	err := sink.Append(context.Background(), &Entry{
		ID:       "entry-1",
		Category: CategoryParty,
		Action:   "party_registered",
		PartyID:  "TNM",
		Outcome:  "success",
	})
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), auditStreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, ok := entries[0].Values["entry"].(string)
	require.True(t, ok)

	var got Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "party_registered", got.Action)
	assert.Equal(t, "TNM", got.PartyID)
}

func TestRedisSink_BreakerOpensOnDeadRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(client, zaptest.NewLogger(t))

	mr.Close()

	for i := 0; i < 6; i++ {
		err := sink.Append(context.Background(), &Entry{ID: "x", Category: CategoryParty, Action: "noop"})
		require.Error(t, err)
	}

	// Breaker is open now: the failure is immediate, not a connection timeout.
	err := sink.Append(context.Background(), &Entry{ID: "y", Category: CategoryParty, Action: "noop"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
