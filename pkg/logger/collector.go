package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher ships aggregated log batches to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	FlushInterval time.Duration // periodic flush (default 30s)
	MaxEntries    int           // distinct entries that force a flush (default 100)
	Topic         string
	Source        string // instance id stamped on each entry
	Publisher     Publisher
}

// AggregatedLogEntry is one distinct (level, caller, message) seen Count times
// between flushes. Fields are those of the first occurrence.
type AggregatedLogEntry struct {
	Source    string                 `json:"source,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates warnings and errors and publishes them in batches
// from a single sender goroutine. Batches are dropped when the sender falls
// behind.
type LogCollector struct {
	cfg     CollectionConfig
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	order   []uint64 // first-seen order of entries
	out     chan []AggregatedLogEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
	now     func() time.Time
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}

	c := &LogCollector{
		cfg:     cfg,
		entries: make(map[uint64]*AggregatedLogEntry),
		out:     make(chan []AggregatedLogEntry, 4),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	c.wg.Add(2)
	go c.tick()
	go c.send()
	return c
}

// AddLog records one occurrence.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	key := entryKey(level, caller, message)
	now := c.now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.order = append(c.order, key)
	c.entries[key] = &AggregatedLogEntry{
		Source:    c.cfg.Source,
		Level:     level,
		Message:   message,
		Caller:    caller,
		Fields:    fields,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.cfg.MaxEntries {
		c.flushLocked()
	}
}

// Dropped returns how many batches were discarded because the sender was busy.
func (c *LogCollector) Dropped() int64 { return c.dropped.Load() }

// Close flushes what is left and waits for the sender to finish.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

func entryKey(level, caller, message string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(level))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(caller))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(message))
	return h.Sum64()
}

func (c *LogCollector) tick() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			close(c.out)
			return
		}
	}
}

// flushLocked hands the current entries to the sender. c.mu must be held.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.order))
	for _, k := range c.order {
		batch = append(batch, *c.entries[k])
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)
	c.order = c.order[:0]

	select {
	case c.out <- batch:
	default:
		c.dropped.Add(1)
	}
}

func (c *LogCollector) send() {
	defer c.wg.Done()
	for batch := range c.out {
		if c.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			// the logger itself feeds this collector, so report on stderr
			fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(batch), c.cfg.Topic, err)
		}
		cancel()
	}
}
