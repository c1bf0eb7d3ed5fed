package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWriterAppendsPerAccountNDJSON(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 16}, nil)
	require.NoError(t, err)

	w.Record(42, "/help", "Here are the commands")
	w.Record(42, "hello", "")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "42.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var events []Event
	for _, line := range lines {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	assert.Equal(t, DirectionInbound, events[0].Direction)
	assert.Equal(t, "/help", events[0].Content)
	assert.Equal(t, DirectionOutbound, events[1].Direction)
	assert.Equal(t, "Here are the commands", events[1].Content)
	assert.Equal(t, "hello", events[2].Content)
	assert.Equal(t, int64(42), events[2].AccountID)
	assert.NotEmpty(t, events[0].Timestamp)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.NotPanics(t, func() { w.Record(1, "late", "reply") })
}
