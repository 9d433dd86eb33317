package server

import (
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/KinGoSco/chat/internal/stats"
)

const blockCacheSize = 8192

// BlockStore answers whether a block relation exists between two users,
// in either direction.
type BlockStore interface {
	IsBlocked(a, b int) (bool, error)
}

// blockKey is a user pair normalized so (a, b) and (b, a) share one
// cache entry, mirroring the symmetric effect of a block.
type blockKey struct {
	a, b int
}

func newBlockKey(a, b int) blockKey {
	if a > b {
		a, b = b, a
	}
	return blockKey{a: a, b: b}
}

// Router fans published events out to a topic's live subscribers,
// filtering each recipient against the block list at delivery time.
// Block lookups are cached; the cache is invalidated explicitly when a
// block is created or removed so later deliveries see the change
// immediately.
type Router struct {
	log      *log.Logger
	registry *TopicRegistry
	blocks   BlockStore
	stats    stats.StatsProvider

	blockCache *lru.Cache[blockKey, bool]
	group      singleflight.Group
}

func NewRouter(logger *log.Logger, registry *TopicRegistry, blocks BlockStore, sp stats.StatsProvider) (*Router, error) {
	cache, err := lru.New[blockKey, bool](blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}

	return &Router{
		log:        logger,
		registry:   registry,
		blocks:     blocks,
		stats:      sp,
		blockCache: cache,
	}, nil
}

// Publish delivers the event to every current subscriber of the topic.
// Recipients with a block relation to the event's sender are skipped
// silently. Each delivery is attempted independently: a slow consumer
// being closed mid-iteration never affects the remaining recipients.
func (r *Router) Publish(t Topic, ev *Event) {
	subs := r.registry.Subscribers(t)
	r.stats.Incr(StatEventsPublished)

	for _, c := range subs {
		if ev.SenderId != 0 {
			blocked, err := r.isBlocked(ev.SenderId, c.UserId())
			if err != nil {
				// Skip rather than risk delivering across a block.
				r.log.Printf("block lookup for (%d, %d): %v", ev.SenderId, c.UserId(), err)
				continue
			}
			if blocked {
				r.stats.Incr(StatBlockedDeliveries)
				continue
			}
		}

		if c.Send(ev) {
			r.stats.Incr(StatEventsDelivered)
		}
	}
}

// PublishDirect routes a direct message: the event goes to the
// receiver's dm topic for live push, and the receipt goes straight back
// to the sending session. The receipt deliberately bypasses the shared
// topic so the sender gets exactly one confirmation even when other
// sessions of theirs are subscribed.
func (r *Router) PublishDirect(sender *Client, receiverId int, ev, receipt *Event) {
	r.Publish(DMTopic(receiverId), ev)

	if sender.Send(receipt) {
		r.stats.Incr(StatEventsDelivered)
	}
}

// InvalidateBlock drops the cached block state for a user pair. Called
// whenever a block is created or removed.
func (r *Router) InvalidateBlock(a, b int) {
	r.blockCache.Remove(newBlockKey(a, b))
}

func (r *Router) isBlocked(a, b int) (bool, error) {
	if a == b {
		return false, nil
	}

	key := newBlockKey(a, b)
	if blocked, ok := r.blockCache.Get(key); ok {
		return blocked, nil
	}

	// Collapse concurrent lookups for the same pair into one query.
	v, err, _ := r.group.Do(fmt.Sprintf("%d:%d", key.a, key.b), func() (any, error) {
		blocked, err := r.blocks.IsBlocked(key.a, key.b)
		if err != nil {
			return false, err
		}

		r.blockCache.Add(key, blocked)
		return blocked, nil
	})
	if err != nil {
		return false, err
	}

	return v.(bool), nil
}
