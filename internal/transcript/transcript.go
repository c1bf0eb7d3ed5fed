// Package transcript writes an NDJSON log of every chat turn, one file per
// account.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Direction of a logged message relative to the service.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Event is one line of a transcript file.
type Event struct {
	Timestamp string `json:"ts"`
	AccountID int64  `json:"account_id"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
}

// Config controls a Writer.
type Config struct {
	Dir       string
	QueueSize int
}

// Writer appends transcript events from a bounded queue on a background
// goroutine. Events are dropped when the queue is full.
type Writer struct {
	dir    string
	queue  chan Event
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewWriter creates the transcript directory and starts the writer.
func NewWriter(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	w := &Writer{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Record queues the inbound text and the reply of one turn.
func (w *Writer) Record(accountID int64, inbound, reply string) {
	ts := w.now().UTC().Format(time.RFC3339Nano)
	w.enqueue(Event{Timestamp: ts, AccountID: accountID, Direction: DirectionInbound, Content: inbound})
	if reply != "" {
		w.enqueue(Event{Timestamp: ts, AccountID: accountID, Direction: DirectionOutbound, Content: reply})
	}
}

func (w *Writer) enqueue(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- ev:
	default:
		w.logger.Warn("Transcript queue full, dropping event", "account_id", ev.AccountID, "queue_len", len(w.queue))
	}
}

// Close flushes queued events and stops the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}

func (w *Writer) run() {
	defer close(w.done)
	for ev := range w.queue {
		if err := w.append(ev); err != nil {
			w.logger.Warn("Failed to write transcript event", "account_id", ev.AccountID, "error", err)
		}
	}
}

func (w *Writer) append(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	path := filepath.Join(w.dir, strconv.FormatInt(ev.AccountID, 10)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
