package server

import (
	"hash/fnv"
	"sync"
)

const registryShards = 16

type registryShard struct {
	mu     sync.RWMutex
	topics map[Topic]map[*Client]struct{}
}

// TopicRegistry maps topics to their live subscriber sets. It is safe
// for concurrent use; state is split across shards keyed by topic so
// unrelated rooms never contend on one lock. Topics exist only while
// they have subscribers: the entry is created on first subscribe and
// dropped when the last subscriber leaves.
type TopicRegistry struct {
	shards [registryShards]*registryShard
}

func NewTopicRegistry() *TopicRegistry {
	tr := &TopicRegistry{}
	for i := range tr.shards {
		tr.shards[i] = &registryShard{
			topics: make(map[Topic]map[*Client]struct{}),
		}
	}
	return tr
}

func (tr *TopicRegistry) shard(t Topic) *registryShard {
	h := fnv.New32a()
	h.Write([]byte{byte(t.kind)})
	h.Write([]byte(t.room))
	h.Write([]byte{
		byte(t.user), byte(t.user >> 8), byte(t.user >> 16), byte(t.user >> 24),
	})
	return tr.shards[h.Sum32()%registryShards]
}

func (tr *TopicRegistry) Subscribe(t Topic, c *Client) {
	s := tr.shard(t)
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.topics[t]
	if !ok {
		subs = make(map[*Client]struct{})
		s.topics[t] = subs
	}
	subs[c] = struct{}{}
}

// Unsubscribe removes the client from the topic. Removing a client
// that never subscribed is a no-op.
func (tr *TopicRegistry) Unsubscribe(t Topic, c *Client) {
	s := tr.shard(t)
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.topics[t]
	if !ok {
		return
	}

	delete(subs, c)
	if len(subs) == 0 {
		delete(s.topics, t)
	}
}

// Subscribers returns a snapshot of the topic's subscriber set. The
// caller may iterate it without holding any registry lock; an unknown
// topic yields an empty snapshot.
func (tr *TopicRegistry) Subscribers(t Topic) []*Client {
	s := tr.shard(t)
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.topics[t]
	if len(subs) == 0 {
		return nil
	}

	snapshot := make([]*Client, 0, len(subs))
	for c := range subs {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// NumSubscribers reports the current size of a topic's subscriber set.
func (tr *TopicRegistry) NumSubscribers(t Topic) int {
	s := tr.shard(t)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.topics[t])
}
