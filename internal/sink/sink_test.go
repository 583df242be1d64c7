package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surge/internal/session"
)

func testRecord(userID int64, st session.Status, d time.Duration) Record {
	return Record{
		RunID:    "run-1",
		Scenario: "checkout",
		UserID:   userID,
		Status:   st,
		Outcome:  st.String(),
		Start:    time.Now(),
		Duration: d,
	}
}

func TestFile_WritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	s, err := NewFile(path)
	require.NoError(t, err)
	defer s.Close()

	s.Record(testRecord(1, session.Passed, 10*time.Millisecond))
	s.Record(testRecord(2, session.Failed, 20*time.Millisecond))
	require.NoError(t, s.Flush(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFile_FlushIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	s, err := NewFile(path)
	require.NoError(t, err)
	defer s.Close()

	s.Record(testRecord(1, session.Passed, time.Millisecond))
	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, s.Flush(context.Background()))

	// Records after the flush are dropped, not appended to a closed run.
	s.Record(testRecord(2, session.Passed, time.Millisecond))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
}

func TestConsole_SummarizesOutcomes(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsole(zerolog.New(&buf))

	s.Record(testRecord(1, session.Passed, 10*time.Millisecond))
	s.Record(testRecord(2, session.Failed, 30*time.Millisecond))
	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, s.Flush(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"passed":1`)
	assert.Contains(t, out, `"failed":1`)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("run summary")))
}

func TestHistogram_RecordsDurations(t *testing.T) {
	s := NewHistogram(zerolog.Nop(), time.Minute, 3)

	for i := 0; i < 10; i++ {
		s.Record(testRecord(int64(i), session.Passed, time.Duration(i+1)*time.Millisecond))
	}
	count, dropped := s.Snapshot()
	assert.Equal(t, int64(10), count)
	assert.Equal(t, 0, dropped)

	require.NoError(t, s.Flush(context.Background()))
}

func TestHistogram_CountsOutOfRangeDrops(t *testing.T) {
	s := NewHistogram(zerolog.Nop(), time.Second, 3)

	s.Record(testRecord(1, session.Passed, time.Hour))
	_, dropped := s.Snapshot()
	assert.Equal(t, 1, dropped)
}
