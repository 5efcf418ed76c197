package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

// maxBatch bounds how many events a single bbolt transaction commits.
const maxBatch = 256

// Journal persists events to a bbolt file.
//
// Add never blocks: events are queued on a buffered channel and written by a
// background goroutine in batches. When the queue is full the event is
// dropped and counted; see Dropped.
//
// Keys are event ids (ULIDs), so a bucket cursor walks the journal in
// creation order.
type Journal struct {
	db *bbolt.DB

	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex // guards closed against concurrent Add/Close
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64
}

// OpenJournal opens (or creates) the journal at path. buffer is the capacity
// of the write queue.
func OpenJournal(path string, buffer int) (*Journal, error) {
	if buffer < 1 {
		buffer = 1
	}
	db, err := bbolt.Open(path, 0o640, &bbolt.Options{Timeout: 0})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventlog: init bucket: %w", err)
	}

	j := &Journal{
		db:    db,
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go j.writeLoop()
	return j, nil
}

// Add implements Log.
func (j *Journal) Add(e Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- e:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full
// or the journal was closed.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Written returns how many events have been committed.
func (j *Journal) Written() uint64 { return j.written.Load() }

// Close flushes queued events and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}

// ForEach calls fn for every persisted event in creation order. Iteration
// stops at the first error fn returns.
func (j *Journal) ForEach(fn func(Event) error) error {
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("eventlog: decode: %w", err)
			}
			return fn(e)
		})
	})
}

func (j *Journal) writeLoop() {
	defer close(j.done)

	batch := make([]Event, 0, maxBatch)
	for e := range j.queue {
		batch = append(batch[:0], e)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := j.write(batch); err != nil {
			slog.Error("eventlog: journal write failed", "events", len(batch), "err", err)
			j.dropped.Add(uint64(len(batch)))
			continue
		}
		j.written.Add(uint64(len(batch)))
	}
}

func (j *Journal) write(batch []Event) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		for _, e := range batch {
			val, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", e.ID, err)
			}
			if err := b.Put([]byte(e.ID), val); err != nil {
				return err
			}
		}
		return nil
	})
}
