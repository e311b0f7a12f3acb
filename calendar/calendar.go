package calendar

import (
	"sync"

	"github.com/redical/redical/index"
	"github.com/redical/redical/instance"
	"github.com/redical/redical/override"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// Calendar is the in-memory aggregate: the event map plus the indexes kept
// consistent with it on every write. Every method, reader or writer, takes
// mu; the lookups return copies (index.Inverted.Lookup and
// index.Geo.RadiusQuery build fresh sets), so results stay valid after the
// lock is released.
type Calendar struct {
	UID value.UID

	mu sync.Mutex

	events map[value.UID]*Event

	indexesEnabled bool
	categories     *index.Inverted
	relatedTo      *index.Inverted
	class          *index.Inverted
	geo            *index.Geo
}

// NewCalendar constructs an empty calendar with indexes enabled, the
// default state for a freshly-created calendar key.
func NewCalendar(uid value.UID) *Calendar {
	return &Calendar{
		UID:            uid,
		events:         make(map[value.UID]*Event),
		indexesEnabled: true,
		categories:     index.NewInverted(),
		relatedTo:      index.NewInverted(),
		class:          index.NewInverted(),
		geo:            index.NewGeo(),
	}
}

// GetEvent returns a defensive copy of the stored event, or false if absent.
func (c *Calendar) GetEvent(uid value.UID) (*Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[uid]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// ListEvents returns every event UID currently stored. No separate
// structure is maintained for this; it's just this map's key space.
func (c *Calendar) ListEvents() []value.UID {
	c.mu.Lock()
	defer c.mu.Unlock()
	uids := make([]value.UID, 0, len(c.events))
	for uid := range c.events {
		uids = append(uids, uid)
	}
	return uids
}

// SetEvent creates or replaces the event at uid with base/overrides,
// diffing against any prior version to apply a minimal index changeset.
// uid is immutable once created, so base.UID is forced to match the
// argument.
func (c *Calendar) SetEvent(uid value.UID, base instance.Base, overrides override.Store) *redicalerr.Error {
	base.UID = uid

	if err := base.Schedule.Validate(); err != nil {
		return err
	}
	if base.Geo != nil && !base.Geo.Valid() {
		return redicalerr.New(redicalerr.Schema, "event %q: GEO point %v out of range", uid, *base.Geo)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prior, hadPrior := c.events[uid]

	next := &Event{Base: base, Overrides: overrides}
	next.invalidateCache()

	if c.indexesEnabled {
		var priorEvent *Event
		if hadPrior {
			priorEvent = prior
		}
		c.applyIndexChangeset(uid, priorEvent, next)
	}

	c.events[uid] = next
	return nil
}

// DeleteEvent removes uid and purges every posting it held.
func (c *Calendar) DeleteEvent(uid value.UID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[uid]; !ok {
		return false
	}
	delete(c.events, uid)

	if c.indexesEnabled {
		c.categories.Remove(uid)
		c.relatedTo.Remove(uid)
		c.class.Remove(uid)
		c.geo.Remove(uid)
	}
	return true
}

// applyIndexChangeset posts next's index terms, replacing prior's (prior may
// be nil for a brand-new event). Each family's own Update computes the
// symmetric diff, so unchanged terms are never touched.
func (c *Calendar) applyIndexChangeset(uid value.UID, prior, next *Event) {
	c.categories.Update(uid, categoryTerms(next))
	c.relatedTo.Update(uid, relatedToTerms(next))
	c.class.Update(uid, classTerms(next))

	switch {
	case next.Geo == nil:
		c.geo.Remove(uid)
	case prior == nil || prior.Geo == nil || *prior.Geo != *next.Geo:
		c.geo.Insert(uid, *next.Geo)
	}
}

// DisableIndexes drops every posting and flips indexesEnabled false;
// subsequent writes skip index maintenance until RebuildIndexes runs again.
func (c *Calendar) DisableIndexes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexesEnabled = false
	c.categories.Rebuild()
	c.relatedTo.Rebuild()
	c.class.Rebuild()
	c.geo.Rebuild()
}

// RebuildIndexes recomputes every index from the current event set and
// re-enables lookups, producing postings identical to inserting every
// event into an empty index, which is exactly what this does.
func (c *Calendar) RebuildIndexes() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.categories.Rebuild()
	c.relatedTo.Rebuild()
	c.class.Rebuild()
	c.geo.Rebuild()

	for uid, e := range c.events {
		c.categories.Insert(uid, categoryTerms(e))
		c.relatedTo.Insert(uid, relatedToTerms(e))
		c.class.Insert(uid, classTerms(e))
		if e.Geo != nil {
			c.geo.Insert(uid, *e.Geo)
		}
	}
	c.indexesEnabled = true
}

// IndexesEnabled reports whether indexed lookups are currently usable.
func (c *Calendar) IndexesEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexesEnabled
}

func (c *Calendar) requireIndexes() *redicalerr.Error {
	if !c.indexesEnabled {
		return redicalerr.New(redicalerr.IndexDisabled, "calendar %q: indexes are disabled", c.UID)
	}
	return nil
}

// LookupCategory returns the UIDs posted under a CATEGORIES term.
func (c *Calendar) LookupCategory(term string) (map[value.UID]struct{}, *redicalerr.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIndexes(); err != nil {
		return nil, err
	}
	return c.categories.Lookup(term), nil
}

// LookupRelatedTo returns the UIDs posted under a (RELTYPE, value) pair.
func (c *Calendar) LookupRelatedTo(reltype, val string) (map[value.UID]struct{}, *redicalerr.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIndexes(); err != nil {
		return nil, err
	}
	return c.relatedTo.Lookup(relatedToTerm(reltype, val)), nil
}

// LookupClass returns the UIDs posted under a CLASS value.
func (c *Calendar) LookupClass(class string) (map[value.UID]struct{}, *redicalerr.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIndexes(); err != nil {
		return nil, err
	}
	return c.class.Lookup(class), nil
}

// LookupRadius returns the UIDs within radiusMeters of centre.
func (c *Calendar) LookupRadius(centre value.GeoPoint, radiusMeters float64) (map[value.UID]struct{}, *redicalerr.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIndexes(); err != nil {
		return nil, err
	}
	return c.geo.RadiusQuery(centre, radiusMeters), nil
}
