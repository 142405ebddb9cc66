package auth

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultLoginRate       = rate.Limit(1.0 / 6.0) // one attempt every 6s on average
	DefaultLoginBurst      = 5
	DefaultThrottleEntries = 10000
	defaultThrottleIdle    = 30 * time.Minute
)

// LoginThrottle is a per username token bucket in front of the login
// endpoint. Known and unknown usernames are throttled alike. At most
// maxEntries usernames are tracked; the least recently seen is evicted
// first, and entries idle longer than idle are dropped.
type LoginThrottle struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	recent     *list.List // front is most recently seen
	limit      rate.Limit
	burst      int
	idle       time.Duration
	maxEntries int
	now        func() time.Time
}

type throttleEntry struct {
	key     string
	limiter *rate.Limiter
	seen    time.Time
}

// NewLoginThrottle returns a throttle allowing burst attempts then limit
// attempts per second for each username.
func NewLoginThrottle(limit rate.Limit, burst int) *LoginThrottle {
	if limit <= 0 {
		limit = DefaultLoginRate
	}
	if burst <= 0 {
		burst = DefaultLoginBurst
	}
	return &LoginThrottle{
		entries:    make(map[string]*list.Element),
		recent:     list.New(),
		limit:      limit,
		burst:      burst,
		idle:       defaultThrottleIdle,
		maxEntries: DefaultThrottleEntries,
		now:        time.Now,
	}
}

// WithClock replaces the time source
func (t *LoginThrottle) WithClock(now func() time.Time) *LoginThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

// WithMaxEntries caps the number of tracked usernames
func (t *LoginThrottle) WithMaxEntries(n int) *LoginThrottle {
	if n > 0 {
		t.maxEntries = n
	}
	return t
}

// Allow reports whether another attempt for username may proceed now
func (t *LoginThrottle) Allow(username string) bool {
	if t == nil {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(username))

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.dropIdle(now)

	var entry *throttleEntry
	if el, ok := t.entries[key]; ok {
		entry = el.Value.(*throttleEntry)
		t.recent.MoveToFront(el)
	} else {
		for len(t.entries) >= t.maxEntries {
			t.evict(t.recent.Back())
		}
		entry = &throttleEntry{key: key, limiter: rate.NewLimiter(t.limit, t.burst)}
		t.entries[key] = t.recent.PushFront(entry)
	}
	entry.seen = now

	return entry.limiter.AllowN(now, 1)
}

// Len is the number of tracked usernames
func (t *LoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *LoginThrottle) dropIdle(now time.Time) {
	for el := t.recent.Back(); el != nil; el = t.recent.Back() {
		if now.Sub(el.Value.(*throttleEntry).seen) <= t.idle {
			return
		}
		t.evict(el)
	}
}

func (t *LoginThrottle) evict(el *list.Element) {
	entry := t.recent.Remove(el).(*throttleEntry)
	delete(t.entries, entry.key)
}
