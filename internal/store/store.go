// Package store implements the shared server state of §4.B: keyed
// byte values with optional TTL, a background purger that reclaims
// expired keys, and per-channel publish/subscribe fan-out.
package store

import (
	"sync"
	"time"
)

// Store holds every key's entry plus the expiry index and channel
// hubs that back it. The zero value is not usable; construct with
// New.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	expiry  *expiryIndex
	hubs    map[string]*hub

	notify chan struct{} // signals the purger that the next deadline may have moved earlier

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup

	now func() time.Time
}

// New constructs a Store and starts its background purger goroutine.
// Callers must call Close when done to stop the purger.
func New() *Store {
	s := &Store{
		entries: make(map[string]Entry),
		expiry:  newExpiryIndex(),
		hubs:    make(map[string]*hub),
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
		now:     time.Now,
	}
	s.wg.Add(1)
	go s.purgeLoop()
	return s
}

// Close stops the purger goroutine and waits for it to exit.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.wg.Wait()
}

// Get returns the value stored for key. ok is false if the key is
// absent or has already passed its expiry (even if the purger hasn't
// reclaimed it yet — reads never return stale expired data, per §3).
func (s *Store) Get(key string) (value []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[key]
	if !found {
		return nil, false
	}
	if e.HasExpiry && !e.ExpiresAt.After(s.now()) {
		return nil, false
	}
	return e.Data, true
}

// Set stores value for key, replacing any prior entry and canceling
// its pending expiry. If ttl is positive, the new entry expires ttl
// after now; a zero or negative ttl stores the entry without expiry.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{Data: value}
	if ttl > 0 {
		e.HasExpiry = true
		e.ExpiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e

	if !e.HasExpiry {
		s.expiry.remove(key)
		return
	}
	if becameEarliest := s.expiry.insert(key, e.ExpiresAt); becameEarliest {
		s.wake()
	}
}

// wake nudges the purger to re-check its deadline. Must be called
// with s.mu held; the send is non-blocking because notify has
// capacity 1 and a pending signal is as good as two.
func (s *Store) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Subscribe registers the caller on channel and returns an id for a
// later Unsubscribe plus the stream of published messages.
func (s *Store) Subscribe(channel string) (id uint64, messages <-chan []byte) {
	s.mu.Lock()
	h, ok := s.hubs[channel]
	if !ok {
		h = newHub()
		s.hubs[channel] = h
	}
	s.mu.Unlock()

	return h.subscribe()
}

// Unsubscribe removes a subscription previously returned by
// Subscribe. Once a channel's last subscriber leaves, the channel
// entry itself is dropped — a later SUBSCRIBE to the same name starts
// a fresh hub (§4.B).
func (s *Store) Unsubscribe(channel string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hubs[channel]
	if !ok {
		return
	}
	if h.unsubscribe(id) {
		delete(s.hubs, channel)
	}
}

// Publish delivers msg to channel's current subscribers and returns
// how many subscribers it had at that instant.
func (s *Store) Publish(channel string, msg []byte) (subscriberCount int) {
	s.mu.Lock()
	h, ok := s.hubs[channel]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return h.publish(msg)
}

// purgeLoop implements §4.B's purger algorithm: sleep until the
// earliest pending expiry, or until woken by an earlier insert or by
// Close, then reclaim every key whose deadline has passed.
func (s *Store) purgeLoop() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		_, at, ok := s.expiry.peek()
		s.mu.Unlock()

		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.closed:
				return
			}
		}

		d := at.Sub(s.now())
		if d <= 0 {
			s.reclaim()
			continue
		}

		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-s.notify:
			timer.Stop()
		case <-s.closed:
			timer.Stop()
			return
		}
	}
}

// reclaim removes every key whose expiry has passed as of now.
func (s *Store) reclaim() {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.expiry.popDue(s.now())
	for _, key := range due {
		delete(s.entries, key)
	}
}
