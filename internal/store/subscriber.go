package store

import "sync"

type subscriber struct {
	ch     chan Entry
	mu     sync.Mutex
	closed bool
}

func newSubscriber(size int) *subscriber {
	if size <= 0 {
		size = 1
	}
	return &subscriber{
		ch: make(chan Entry, size),
	}
}

func (s *subscriber) channel() <-chan Entry {
	return s.ch
}

func (s *subscriber) send(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
		return
	default:
		// Drop oldest to make room for the new entry.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	close(s.ch)
	s.closed = true
}
