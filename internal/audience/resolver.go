package audience

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/clock"
)

// DefaultCacheTTL bounds how long a resolved segment is served from cache.
const DefaultCacheTTL = time.Minute

// Resolver turns segment ids into recipient lists, with a TTL plus
// source-mtime cache per (tenant, segment) pair.
type Resolver struct {
	store Store
	clk   clock.Clock
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	emails  []string
	expires time.Time
	mtime   time.Time
}

// NewResolver creates a Resolver over the given store. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewResolver(store Store, clk clock.Clock, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		store: store,
		clk:   clk,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// ResolveSegment returns the deduplicated, unsubscribe-filtered emails
// belonging to a segment. Event and definition read failures propagate;
// unsubscribe read failures degrade to the empty set. A cache hit requires
// both an unexpired TTL and an unchanged event-log mtime.
func (r *Resolver) ResolveSegment(tenant, segmentID string) ([]string, error) {
	mtime, err := r.store.ModTime(tenant)
	if err != nil {
		return nil, fmt.Errorf("stat event log for %s: %w", tenant, err)
	}

	key := tenant + "\x00" + segmentID
	now := r.clk.Now()

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && now.Before(entry.expires) && entry.mtime.Equal(mtime) {
		emails := entry.emails
		r.mu.Unlock()
		return emails, nil
	}
	r.mu.Unlock()

	emails, err := r.resolve(tenant, segmentID)
	if err != nil {
		return nil, err
	}
	emails = r.FilterUnsubscribed(tenant, emails)

	r.mu.Lock()
	r.cache[key] = cacheEntry{
		emails:  emails,
		expires: now.Add(r.ttl),
		mtime:   mtime,
	}
	r.mu.Unlock()
	return emails, nil
}

func (r *Resolver) resolve(tenant, segmentID string) ([]string, error) {
	defs, err := r.store.Definitions(tenant)
	if err != nil {
		return nil, fmt.Errorf("read segment definitions for %s: %w", tenant, err)
	}
	events, err := r.store.Events(tenant)
	if err != nil {
		return nil, fmt.Errorf("read events for %s: %w", tenant, err)
	}

	var def *SegmentDef
	for i := range defs {
		if defs[i].ID == segmentID {
			def = &defs[i]
			break
		}
	}

	seen := make(map[string]bool)
	var emails []string
	for _, ev := range events {
		if ev.Email == "" {
			continue
		}
		var member bool
		if def != nil {
			member = def.Filter.Match(ev)
		} else {
			member = taggedWith(ev, segmentID)
		}
		if member && !seen[ev.Email] {
			seen[ev.Email] = true
			emails = append(emails, ev.Email)
		}
	}
	return emails, nil
}

// taggedWith reports whether an event carries bare membership evidence for
// a segment, either as a "segment:<id>" type tag or as an explicit segment
// event.
func taggedWith(ev Event, segmentID string) bool {
	if ev.Type == "segment:"+segmentID {
		return true
	}
	return ev.Type == "segment" && ev.Segment == segmentID
}

// UnsubscribedSet returns the tenant's unsubscribe set. Read failures are
// logged and degrade to the empty set; suppression is best-effort by
// contract.
func (r *Resolver) UnsubscribedSet(tenant string) map[string]bool {
	set, err := r.store.Unsubscribed(tenant)
	if err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Msg("unsubscribe set unavailable, treating as empty")
		return map[string]bool{}
	}
	return set
}

// FilterUnsubscribed removes unsubscribed addresses from a recipient list.
// Comparison is case-insensitive on the address.
func (r *Resolver) FilterUnsubscribed(tenant string, emails []string) []string {
	set := r.UnsubscribedSet(tenant)
	if len(set) == 0 {
		return emails
	}

	lower := make(map[string]bool, len(set))
	for e := range set {
		lower[strings.ToLower(e)] = true
	}

	out := emails[:0:0]
	for _, e := range emails {
		if !lower[strings.ToLower(e)] {
			out = append(out, e)
		}
	}
	return out
}
