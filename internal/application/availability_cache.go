package application

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// availabilityCache stores computed availability scans per date and user so
// repeated lookups skip the repository while appointments remain unchanged.
// Every mutation flushes it.
type availabilityCache struct {
	store *cache.Cache
}

func newAvailabilityCache(ttl time.Duration) *availabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &availabilityCache{store: cache.New(ttl, 2*ttl)}
}

func (c *availabilityCache) Get(key string) ([]AvailabilitySlot, bool) {
	if c == nil {
		return nil, false
	}
	value, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	slots, ok := value.([]AvailabilitySlot)
	if !ok {
		return nil, false
	}
	return cloneSlots(slots), true
}

func (c *availabilityCache) Store(key string, slots []AvailabilitySlot) {
	if c == nil {
		return
	}
	c.store.SetDefault(key, cloneSlots(slots))
}

func (c *availabilityCache) Invalidate() {
	if c == nil {
		return
	}
	c.store.Flush()
}

func cloneSlots(slots []AvailabilitySlot) []AvailabilitySlot {
	if slots == nil {
		return nil
	}
	out := make([]AvailabilitySlot, len(slots))
	for i, slot := range slots {
		out[i] = slot
		out[i].BlockedBy = append([]string(nil), slot.BlockedBy...)
	}
	return out
}

func availabilityKey(date, userID string) string {
	return date + "|" + userID
}
