package server

import "fmt"

// TopicKind discriminates the three topic namespaces. Rooms are shared
// between their members; dm and notify topics belong to a single user.
type TopicKind uint8

const (
	TopicRoom TopicKind = iota + 1
	TopicDM
	TopicNotify
)

// Topic identifies one channel of events. It is a small comparable
// value, safe to use as a map key. Construct topics with RoomTopic,
// DMTopic or NotifyTopic rather than building them by hand: the factory
// functions keep the namespaces distinct, so a room named "42" can
// never collide with user 42's inbox.
type Topic struct {
	kind TopicKind
	room string
	user int
}

// RoomTopic returns the topic for a room, identified by its external id.
func RoomTopic(externalId string) Topic {
	return Topic{kind: TopicRoom, room: externalId}
}

// DMTopic returns the direct-message inbox topic for a user.
func DMTopic(userId int) Topic {
	return Topic{kind: TopicDM, user: userId}
}

// NotifyTopic returns the notification inbox topic for a user.
func NotifyTopic(userId int) Topic {
	return Topic{kind: TopicNotify, user: userId}
}

func (t Topic) Kind() TopicKind { return t.kind }

// Room returns the room external id; empty for dm and notify topics.
func (t Topic) Room() string { return t.room }

// User returns the owning user id; zero for room topics.
func (t Topic) User() int { return t.user }

func (t Topic) IsZero() bool { return t.kind == 0 }

func (t Topic) String() string {
	switch t.kind {
	case TopicRoom:
		return "room:" + t.room
	case TopicDM:
		return fmt.Sprintf("dm:%d", t.user)
	case TopicNotify:
		return fmt.Sprintf("notify:%d", t.user)
	default:
		return "topic:unknown"
	}
}
