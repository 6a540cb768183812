package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/compose"
)

var ErrNoSources = errors.New("feed has no sources")

// Pool holds the current candidate comics, refreshed from its sources.
// Readers always get a snapshot; a refresh never mutates one in place.
type Pool struct {
	sources    []Source
	maxEntries int
	log        *logrus.Entry

	// refreshMu serializes refreshes; it guards filter and verdicts.
	refreshMu sync.Mutex
	filter    Filter
	verdicts  map[string]bool

	mu      sync.RWMutex
	entries []compose.Entry
	updated time.Time

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// NewPool keeps at most maxEntries entries; zero keeps all of them.
func NewPool(maxEntries int, log *logrus.Entry, sources ...Source) *Pool {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{
		sources:    sources,
		maxEntries: maxEntries,
		log:        log.WithField("component", "feed"),
		subs:       make(map[chan struct{}]struct{}),
		verdicts:   make(map[string]bool),
	}
}

// SetFilter screens entries on later refreshes. A verdict is remembered per
// entry ID for as long as the entry keeps coming back from its source.
func (p *Pool) SetFilter(f Filter) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	p.filter = f
	clear(p.verdicts)
}

func (p *Pool) Snapshot() []compose.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]compose.Entry(nil), p.entries...)
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Updated is the time of the last successful refresh.
func (p *Pool) Updated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updated
}

// Refresh reloads every source in order. A failing source is logged and
// skipped; the pool is only left untouched when all of them fail.
func (p *Pool) Refresh(ctx context.Context) error {
	if len(p.sources) == 0 {
		return ErrNoSources
	}
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	var (
		entries []compose.Entry
		errs    []error
	)
	for _, src := range p.sources {
		loaded, err := src.Load(ctx)
		if err != nil {
			p.log.WithError(err).WithField("source", src.Name()).Warn("failed to load source")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		entries = append(entries, loaded...)
	}
	if len(errs) == len(p.sources) {
		return errors.Join(errs...)
	}
	if p.filter != nil {
		entries = p.screen(ctx, entries)
	}
	if p.maxEntries > 0 && len(entries) > p.maxEntries {
		entries = entries[:p.maxEntries]
	}

	p.mu.Lock()
	p.entries = entries
	p.updated = time.Now()
	p.mu.Unlock()

	p.log.WithField("entries", len(entries)).Info("feed refreshed")
	p.notify()
	return nil
}

// screen drops the entries the filter rejects. An entry the filter fails on
// is left out of this refresh and asked about again on the next one.
func (p *Pool) screen(ctx context.Context, entries []compose.Entry) []compose.Entry {
	seen := make(map[string]bool, len(entries))
	kept := make([]compose.Entry, 0, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
		keep, known := p.verdicts[e.ID]
		if !known {
			var err error
			keep, err = p.filter.Keep(ctx, e)
			if err != nil {
				p.log.WithError(err).WithField("entry", e.ID).Warn("filter failed")
				continue
			}
			p.verdicts[e.ID] = keep
		}
		if keep {
			kept = append(kept, e)
		}
	}
	for id := range p.verdicts {
		if !seen[id] {
			delete(p.verdicts, id)
		}
	}
	if dropped := len(entries) - len(kept); dropped > 0 {
		p.log.WithField("dropped", dropped).Debug("filter screened entries")
	}
	return kept
}

// Run refreshes once immediately and then every interval until ctx ends.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	if err := p.Refresh(ctx); err != nil {
		p.log.WithError(err).Error("initial feed refresh failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.log.WithError(err).Error("feed refresh failed")
			}
		}
	}
}

// Subscribe returns a channel that receives a signal after every successful
// refresh. Signals coalesce when the reader is slow. Call cancel to stop.
func (p *Pool) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, ch)
			p.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (p *Pool) notify() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
