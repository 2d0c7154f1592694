package validation

import (
	"sync"
	"time"
)

type draft struct {
	geo     *GeoCapture
	touched time.Time
}

// Drafts keeps the geo capture of every open report form, keyed by session or
// draft id. Entries untouched for longer than ttl are dropped.
type Drafts struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	drafts map[string]*draft
}

func NewDrafts(ttl time.Duration) *Drafts {
	return &Drafts{
		ttl:    ttl,
		now:    time.Now,
		drafts: make(map[string]*draft),
	}
}

func (d *Drafts) Geo(key string) *GeoCapture {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pruneLocked(now)

	entry, ok := d.drafts[key]
	if !ok {
		entry = &draft{geo: NewGeoCapture()}
		d.drafts[key] = entry
	}
	entry.touched = now
	return entry.geo
}

// Discard forgets the draft once its report was submitted.
func (d *Drafts) Discard(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, key)
}

func (d *Drafts) pruneLocked(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for key, entry := range d.drafts {
		if now.Sub(entry.touched) > d.ttl {
			delete(d.drafts, key)
		}
	}
}
