package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/KinGoSco/chat/internal/database"
	"github.com/KinGoSco/chat/internal/stats"
	"github.com/KinGoSco/chat/internal/types"
)

// Metric names registered with the stats provider.
const (
	StatActiveConnections  = "ActiveConnections"
	StatEventsPublished    = "EventsPublished"
	StatEventsDelivered    = "EventsDelivered"
	StatBlockedDeliveries  = "BlockedDeliveries"
	StatSlowConsumerCloses = "SlowConsumerCloses"
	StatMalformedFrames    = "MalformedFrames"
)

// Store is the slice of the persistence layer the chat server consumes.
// The full database.ChatRepository satisfies it.
type Store interface {
	GetRoomByExternalId(externalId string) (database.Room, error)
	GetAccountById(accountId int) (database.User, error)
	IsRoomMember(roomId, accountId int) (bool, error)
	BlockedByAnyMember(roomId, accountId int) (bool, error)
	IsBlocked(a, b int) (bool, error)
	CreateMessage(params database.CreateMessageParams) (database.Message, error)
	CreateDirectMessage(params database.CreateDirectMessageParams) (database.DirectMessage, error)
}

// Sentinel errors returned by the message pipelines. Callers map them
// to their own transport's failure mode.
var (
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrRoomUnknown      = errors.New("room not found")
	ErrUserUnknown      = errors.New("user not found")
	ErrNotAMember       = errors.New("not a room member")
	ErrBlockedInRoom    = errors.New("sender is blocked by a room member")
	ErrBlockedPair      = errors.New("a block exists between the users")
)

// ChatServer owns the topic registry and router and orchestrates
// connection sessions. It is also the event-producer seam: message
// pipelines persist first and fan out only after the write succeeded.
type ChatServer struct {
	log       *log.Logger
	db        Store
	stats     stats.StatsProvider
	registry  *TopicRegistry
	router    *Router
	queueSize int

	clientsLock sync.Mutex
	clients     map[*Client]struct{}
}

func NewChatServer(logger *log.Logger, db Store, su stats.StatsProvider, queueSize int) (*ChatServer, error) {
	registry := NewTopicRegistry()
	router, err := NewRouter(logger, registry, db, su)
	if err != nil {
		return nil, fmt.Errorf("new router: %w", err)
	}

	for _, name := range []string{
		StatActiveConnections,
		StatEventsPublished,
		StatEventsDelivered,
		StatBlockedDeliveries,
		StatSlowConsumerCloses,
		StatMalformedFrames,
	} {
		su.RegisterMetric(name)
	}

	return &ChatServer{
		log:       logger,
		db:        db,
		stats:     su,
		registry:  registry,
		router:    router,
		queueSize: queueSize,
		clients:   make(map[*Client]struct{}),
	}, nil
}

// RegisterClient attaches a freshly handshaken session: it becomes
// Authenticated, is subscribed to its own dm and notify inbox topics
// and transitions to Active. Sessions without an established identity
// are closed immediately.
func (cs *ChatServer) RegisterClient(c *Client) error {
	if c.user.Id == 0 {
		c.Close()
		return ErrNotAuthenticated
	}

	if !c.transition(StateConnecting, StateAuthenticated) {
		return fmt.Errorf("session %s in state %s, expected %s", c.id, c.State(), StateConnecting)
	}

	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()
	cs.stats.Incr(StatActiveConnections)

	// Identity is the only authorization a user's own inboxes need.
	for _, t := range []Topic{DMTopic(c.user.Id), NotifyTopic(c.user.Id)} {
		cs.registry.Subscribe(t, c)
		c.addTopic(t)
	}

	// A concurrent Close may have detached the session between the
	// transition above and the inbox subscribes. Roll back whatever the
	// detach did not see; the map presence tells whether the detach
	// already balanced the connection counter.
	if !c.transition(StateAuthenticated, StateActive) || c.State() == StateClosed {
		cs.clientsLock.Lock()
		_, present := cs.clients[c]
		delete(cs.clients, c)
		cs.clientsLock.Unlock()
		if present {
			cs.stats.Decr(StatActiveConnections)
		}

		for _, t := range c.Topics() {
			cs.registry.Unsubscribe(t, c)
			c.delTopic(t)
		}

		return fmt.Errorf("session %s closed during registration", c.id)
	}

	cs.log.Printf("session %s registered for user %q", c.id, c.user.Username)

	return nil
}

// detachClient removes a closing session from the server and from every
// topic it held, emitting a leave notification for each room topic an
// active session was subscribed to.
func (cs *ChatServer) detachClient(c *Client, wasActive bool) {
	cs.clientsLock.Lock()
	_, known := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if known {
		cs.stats.Decr(StatActiveConnections)
	}

	for _, t := range c.Topics() {
		cs.registry.Unsubscribe(t, c)
		c.delTopic(t)

		if t.Kind() == TopicRoom && wasActive {
			cs.router.Publish(t, &Event{
				Type:      EventUserLeave,
				Timestamp: Now(),
				SenderId:  c.user.Id,
				Presence: &Presence{
					RoomId:   t.Room(),
					UserId:   c.user.Id,
					Username: c.user.Username,
				},
			})
		}
	}

	cs.log.Printf("session %s detached (user %q)", c.id, c.user.Username)
}

// dispatch routes one inbound frame. It reports false when the frame is
// structurally invalid so the session can apply its malformed-frame
// policy.
func (cs *ChatServer) dispatch(c *Client, frame *ClientFrame) bool {
	switch frame.Type {
	case FrameJoin:
		if frame.Join == nil || frame.Join.RoomId == "" {
			return false
		}
		cs.handleJoin(c, frame)
	case FrameLeave:
		if frame.Leave == nil || frame.Leave.RoomId == "" {
			return false
		}
		cs.handleLeave(c, frame)
	case FramePublish:
		if frame.Publish == nil || frame.Publish.RoomId == "" || frame.Publish.Content == "" {
			return false
		}
		cs.handlePublish(c, frame)
	case FrameDirect:
		if frame.Direct == nil || frame.Direct.ReceiverId == 0 || frame.Direct.Content == "" {
			return false
		}
		cs.handleDirect(c, frame)
	default:
		return false
	}

	return true
}

func (cs *ChatServer) handleJoin(c *Client, frame *ClientFrame) {
	room, err := cs.db.GetRoomByExternalId(frame.Join.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.Send(ErrRoomNotFound(frame.Id))
		} else {
			cs.log.Println("GetRoomByExternalId:", err)
			c.Send(ErrInternalError(frame.Id))
		}
		return
	}

	member, err := cs.db.IsRoomMember(room.Id, c.user.Id)
	if err != nil {
		cs.log.Println("IsRoomMember:", err)
		c.Send(ErrInternalError(frame.Id))
		return
	}
	if !member {
		// Authorization failure: close without emitting anything.
		cs.log.Printf("user %d is not a member of room %q, closing session %s", c.user.Id, room.ExternalId, c.id)
		c.Close()
		return
	}

	t := RoomTopic(room.ExternalId)
	cs.registry.Subscribe(t, c)
	c.addTopic(t)

	// The session may have been closed by another goroutine while the
	// membership checks ran. Close stores the state before detaching,
	// so either this re-check sees Closed and rolls the insert back, or
	// the detach runs after addTopic and removes the topic itself.
	if c.State() == StateClosed {
		cs.registry.Unsubscribe(t, c)
		c.delTopic(t)
		return
	}

	cs.router.Publish(t, &Event{
		Type:      EventUserJoin,
		Timestamp: Now(),
		SenderId:  c.user.Id,
		Presence: &Presence{
			RoomId:   room.ExternalId,
			UserId:   c.user.Id,
			Username: c.user.Username,
		},
	})
}

func (cs *ChatServer) handleLeave(c *Client, frame *ClientFrame) {
	t := RoomTopic(frame.Leave.RoomId)
	if !c.holdsTopic(t) {
		// leaving a topic the session never joined is a no-op
		return
	}

	cs.registry.Unsubscribe(t, c)
	c.delTopic(t)

	cs.router.Publish(t, &Event{
		Type:      EventUserLeave,
		Timestamp: Now(),
		SenderId:  c.user.Id,
		Presence: &Presence{
			RoomId:   frame.Leave.RoomId,
			UserId:   c.user.Id,
			Username: c.user.Username,
		},
	})
}

func (cs *ChatServer) handlePublish(c *Client, frame *ClientFrame) {
	_, err := cs.CreateMessage(frame.Publish.RoomId, c.user, frame.Publish.Content)
	switch {
	case err == nil:
	case errors.Is(err, ErrRoomUnknown):
		c.Send(ErrRoomNotFound(frame.Id))
	case errors.Is(err, ErrNotAMember):
		// membership was revoked since the session joined
		cs.log.Printf("user %d no longer a member of room %q, closing session %s", c.user.Id, frame.Publish.RoomId, c.id)
		c.Close()
	case errors.Is(err, ErrBlockedInRoom):
		// dropped silently, never surfaced to the sender
	default:
		cs.log.Println("CreateMessage:", err)
		c.Send(ErrInternalError(frame.Id))
	}
}

func (cs *ChatServer) handleDirect(c *Client, frame *ClientFrame) {
	_, err := cs.SendDirectMessage(c.user, frame.Direct.ReceiverId, frame.Direct.Content, c)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserUnknown):
		c.Send(ErrUserNotFound(frame.Id))
	case errors.Is(err, ErrBlockedPair):
		c.Send(ErrBlocked(frame.Id))
	default:
		cs.log.Println("SendDirectMessage:", err)
		c.Send(ErrInternalError(frame.Id))
	}
}

// CreateMessage runs the room message pipeline: membership re-check,
// room-wide block pre-check, persist, then fan out to the room topic.
// The created row's own timestamp is what subscribers see. A failed
// write never fans out.
func (cs *ChatServer) CreateMessage(roomExternalId string, sender types.User, content string) (database.Message, error) {
	room, err := cs.db.GetRoomByExternalId(roomExternalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Message{}, ErrRoomUnknown
		}
		return database.Message{}, fmt.Errorf("get room: %w", err)
	}

	member, err := cs.db.IsRoomMember(room.Id, sender.Id)
	if err != nil {
		return database.Message{}, fmt.Errorf("membership check: %w", err)
	}
	if !member {
		return database.Message{}, ErrNotAMember
	}

	blocked, err := cs.db.BlockedByAnyMember(room.Id, sender.Id)
	if err != nil {
		return database.Message{}, fmt.Errorf("room block check: %w", err)
	}
	if blocked {
		cs.stats.Incr(StatBlockedDeliveries)
		return database.Message{}, ErrBlockedInRoom
	}

	msg, err := cs.db.CreateMessage(database.CreateMessageParams{
		RoomId:  room.Id,
		UserId:  sender.Id,
		Content: content,
	})
	if err != nil {
		return database.Message{}, fmt.Errorf("create message: %w", err)
	}

	cs.router.Publish(RoomTopic(room.ExternalId), &Event{
		Type:      EventChatMessage,
		Timestamp: msg.CreatedAt,
		SenderId:  sender.Id,
		Message: &ChatMessage{
			MessageId: msg.Id,
			RoomId:    room.ExternalId,
			UserId:    sender.Id,
			Username:  sender.Username,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		},
	})

	return msg, nil
}

// SendDirectMessage runs the direct message pipeline: recipient lookup,
// symmetric block check, persist, then publish to the receiver's dm
// topic. When session is non-nil (the websocket path) the sending
// session additionally receives a dm_sent receipt, bypassing the shared
// topic.
func (cs *ChatServer) SendDirectMessage(sender types.User, receiverId int, content string, session *Client) (database.DirectMessage, error) {
	receiver, err := cs.db.GetAccountById(receiverId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.DirectMessage{}, ErrUserUnknown
		}
		return database.DirectMessage{}, fmt.Errorf("get receiver: %w", err)
	}

	blocked, err := cs.router.isBlocked(sender.Id, receiver.Id)
	if err != nil {
		return database.DirectMessage{}, fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return database.DirectMessage{}, ErrBlockedPair
	}

	dm, err := cs.db.CreateDirectMessage(database.CreateDirectMessageParams{
		SenderId:   sender.Id,
		ReceiverId: receiver.Id,
		Content:    content,
	})
	if err != nil {
		return database.DirectMessage{}, fmt.Errorf("create direct message: %w", err)
	}

	ev := &Event{
		Type:      EventDirect,
		Timestamp: dm.CreatedAt,
		SenderId:  sender.Id,
		Direct: &Direct{
			MessageId: dm.Id,
			SenderId:  sender.Id,
			Sender:    sender.Username,
			Content:   dm.Content,
			Timestamp: dm.CreatedAt,
		},
	}

	if session != nil {
		receipt := &Event{
			Type:      EventDMSent,
			Timestamp: dm.CreatedAt,
			Receipt: &Receipt{
				MessageId:  dm.Id,
				ReceiverId: receiver.Id,
				Receiver:   receiver.Username,
				Content:    dm.Content,
				Timestamp:  dm.CreatedAt,
			},
		}
		cs.router.PublishDirect(session, receiver.Id, ev, receipt)
	} else {
		cs.router.Publish(DMTopic(receiver.Id), ev)
	}

	return dm, nil
}

// NotifyUserJoined fans out a membership addition made outside any live
// session, e.g. through the HTTP API.
func (cs *ChatServer) NotifyUserJoined(roomExternalId string, user types.User) {
	cs.router.Publish(RoomTopic(roomExternalId), &Event{
		Type:      EventUserJoin,
		Timestamp: Now(),
		SenderId:  user.Id,
		Presence: &Presence{
			RoomId:   roomExternalId,
			UserId:   user.Id,
			Username: user.Username,
		},
	})
}

// NotifyUserLeft fans out a membership removal.
func (cs *ChatServer) NotifyUserLeft(roomExternalId string, user types.User) {
	cs.router.Publish(RoomTopic(roomExternalId), &Event{
		Type:      EventUserLeave,
		Timestamp: Now(),
		SenderId:  user.Id,
		Presence: &Presence{
			RoomId:   roomExternalId,
			UserId:   user.Id,
			Username: user.Username,
		},
	})
}

// NotifyInvitation pushes a freshly persisted game invitation to the
// receiver: a notification to their notify inbox plus a game_invitation
// event to their dm inbox.
func (cs *ChatServer) NotifyInvitation(inv database.GameInvitation, sender database.User) {
	cs.router.Publish(NotifyTopic(inv.ReceiverId), &Event{
		Type:      EventNotification,
		Timestamp: Now(),
		SenderId:  sender.Id,
		Notification: &Notification{
			Kind:    "game_invitation",
			Message: fmt.Sprintf("%s invited you to a game", sender.EmailAddress),
			Data: map[string]any{
				"invitation_id": inv.Id,
				"sender_id":     sender.Id,
				"sender_email":  sender.EmailAddress,
			},
		},
	})

	cs.router.Publish(DMTopic(inv.ReceiverId), &Event{
		Type:      EventInvitation,
		Timestamp: Now(),
		SenderId:  sender.Id,
		Invitation: &Invitation{
			InvitationId: inv.Id,
			SenderId:     sender.Id,
			Sender:       sender.Username,
		},
	})
}

// NotifyInvitationResponse tells the original sender their invitation
// was accepted or declined.
func (cs *ChatServer) NotifyInvitationResponse(inv database.GameInvitation, responder database.User) {
	cs.router.Publish(NotifyTopic(inv.SenderId), &Event{
		Type:      EventNotification,
		Timestamp: Now(),
		SenderId:  responder.Id,
		Notification: &Notification{
			Kind:    "game_invitation_response",
			Message: fmt.Sprintf("%s has %s your game invitation", responder.EmailAddress, inv.Status),
			Data: map[string]any{
				"invitation_id": inv.Id,
				"response":      inv.Status,
			},
		},
	})
}

// NotifyTournament pushes a tournament match notification to each
// user's notify inbox. System-level: no sender, never block-filtered.
func (cs *ChatServer) NotifyTournament(userIds []int, matchDetails map[string]any) {
	for _, id := range userIds {
		cs.router.Publish(NotifyTopic(id), &Event{
			Type:      EventNotification,
			Timestamp: Now(),
			Notification: &Notification{
				Kind:    "tournament_match",
				Message: "Your tournament match is about to begin",
				Data:    matchDetails,
			},
		})
	}
}

// InvalidateBlock exposes the router's cache invalidation to the block
// management API.
func (cs *ChatServer) InvalidateBlock(a, b int) {
	cs.router.InvalidateBlock(a, b)
}

// Shutdown closes every live session. Each close detaches the session
// from all topics synchronously, so an expired context cannot leave
// work undone and is not reported as an error.
func (cs *ChatServer) Shutdown(_ context.Context) error {
	cs.log.Println("shutting down chat server")

	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.Close()
	}

	return nil
}
