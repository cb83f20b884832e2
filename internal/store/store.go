// Package store keeps the in-memory recording of a session.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/phoenixrec/internal/sample"
)

// ErrDuplicateField is returned when a record holds two samples of the same kind.
var ErrDuplicateField = errors.New("duplicate sample kind in record")

const subscriberBuffer = 64

// Forwarder receives every entry appended while it is attached.
type Forwarder interface {
	Enqueue(e Entry)
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Store holds the entries of one session plus the running distance
// totals. It is safe for concurrent use.
type Store struct {
	clock Clock

	mu          sync.Mutex
	entries     []Entry
	commands    []string
	start       time.Time
	rightTotal  float32
	leftTotal   float32
	armed       bool
	forwarder   Forwarder
	subscribers map[*subscriber]struct{}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:       realClock{},
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach sets the forwarder that receives appended entries. Passing nil
// detaches the current one.
func (s *Store) Attach(f Forwarder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwarder = f
}

// AppendRecord appends a record built from samples. DrivenDistance values
// are shifted by the running totals before they are stored.
func (s *Store) AppendRecord(samples ...sample.Sample) (Entry, error) {
	if err := checkDistinct(samples); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	now := s.clock.Now()
	if s.start.IsZero() {
		s.start = now
	}

	rewritten := make([]sample.Sample, len(samples))
	right, left := s.rightTotal, s.leftTotal
	for i, smp := range samples {
		if d, ok := smp.(sample.DrivenDistance); ok {
			smp = sample.DrivenDistance{Right: right + d.Right, Left: left + d.Left}
		}
		rewritten[i] = smp
	}

	entry := Record(elapsedMS(s.start, now), rewritten...)
	if s.forwarder != nil {
		s.forwarder.Enqueue(entry.clone())
	}
	s.entries = append(s.entries, entry)
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	publish(subs, entry)
	return entry.clone(), nil
}

// AppendComment appends a comment without touching timing or totals.
func (s *Store) AppendComment(text string) {
	s.mu.Lock()
	entry := s.appendTextLocked(Comment(text))
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	publish(subs, entry)
}

// AppendCommand records cmd for the session name and appends it as a
// command entry.
func (s *Store) AppendCommand(cmd Command) {
	text := cmd.String()
	s.mu.Lock()
	s.commands = append(s.commands, text)
	entry := s.appendTextLocked(CommandEntry(text))
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	publish(subs, entry)
}

func (s *Store) appendTextLocked(entry Entry) Entry {
	if s.forwarder != nil {
		s.forwarder.Enqueue(entry)
	}
	s.entries = append(s.entries, entry)
	return entry
}

// Replay appends an entry received from a remote peer. Values are stored
// as they arrive and the entry is not forwarded. Command entries extend
// the session name like AppendCommand does.
func (s *Store) Replay(e Entry) error {
	if e.Kind == EntryRecord {
		if err := checkDistinct(e.Samples); err != nil {
			return err
		}
	}
	entry := e.clone()

	s.mu.Lock()
	if entry.Kind == EntryRecord && s.start.IsZero() {
		s.start = s.clock.Now().Add(-time.Duration(entry.ElapsedMS) * time.Millisecond)
	}
	if entry.Kind == EntryCommand {
		s.commands = append(s.commands, entry.Text)
	}
	s.entries = append(s.entries, entry)
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	publish(subs, entry)
	return nil
}

// UpdateTotals adds to the running distance totals. The first call after
// New or Clear only arms the accumulator.
func (s *Store) UpdateTotals(right, left float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		s.armed = true
		return
	}
	s.rightTotal += right
	s.leftTotal += left
}

// Totals returns the running right and left distance totals.
func (s *Store) Totals() (right, left float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rightTotal, s.leftTotal
}

// Elapsed returns the time since the first record. The boolean is false
// when no record has been appended yet.
func (s *Store) Elapsed() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		return 0, false
	}
	return s.clock.Now().Sub(s.start), true
}

// StartTime returns the session start, or the zero time before the first record.
func (s *Store) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// SessionName derives a file name hint from the issued commands.
func (s *Store) SessionName() string {
	s.mu.Lock()
	name := strings.Join(s.commands, "_")
	s.mu.Unlock()

	return "data_" + strings.ReplaceAll(name, " ", "")
}

// Entries returns a copy of all entries in order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entry returns the entry at index i.
func (s *Store) Entry(i int) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// Clear resets the session. The forwarder and subscribers stay attached.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.commands = nil
	s.start = time.Time{}
	s.rightTotal = 0
	s.leftTotal = 0
	s.armed = false
}

// DrainPrefix drops the oldest n entries. It is a no-op unless n is
// smaller than the number of entries.
func (s *Store) DrainPrefix(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n >= len(s.entries) {
		return
	}
	remaining := make([]Entry, len(s.entries)-n)
	copy(remaining, s.entries[n:])
	s.entries = remaining
}

// Subscribe registers a listener for newly appended entries. Slow
// listeners lose the oldest pending entries.
func (s *Store) Subscribe() (<-chan Entry, func()) {
	sub := newSubscriber(subscriberBuffer)

	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
		sub.close()
	}
	return sub.channel(), unsubscribe
}

func (s *Store) subscriberListLocked() []*subscriber {
	if len(s.subscribers) == 0 {
		return nil
	}
	out := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		out = append(out, sub)
	}
	return out
}

func publish(subs []*subscriber, e Entry) {
	for _, sub := range subs {
		sub.send(e.clone())
	}
}

func checkDistinct(samples []sample.Sample) error {
	var seen [256]bool
	for i, smp := range samples {
		if smp == nil {
			return fmt.Errorf("record sample %d is nil", i)
		}
		k := smp.Kind()
		if seen[k] {
			return fmt.Errorf("%w: %s", ErrDuplicateField, k)
		}
		seen[k] = true
	}
	return nil
}

func elapsedMS(start, now time.Time) uint64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
