package server

import (
	"net/http"
	"time"
)

// EventType discriminates outbound events. Every event a session can
// receive carries exactly one of these values and the matching payload
// pointer below.
type EventType string

const (
	EventChatMessage  EventType = "chat_message"
	EventUserJoin     EventType = "user_join"
	EventUserLeave    EventType = "user_leave"
	EventDirect       EventType = "direct_message"
	EventDMSent       EventType = "dm_sent"
	EventInvitation   EventType = "game_invitation"
	EventNotification EventType = "notification_message"
	EventError        EventType = "error"
)

// Event is the single outbound frame type. Events are ephemeral: they
// are built after the corresponding entity has been persisted and are
// never stored themselves.
type Event struct {
	Type      EventType `json:"type"`
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Message      *ChatMessage  `json:"message,omitempty"`
	Presence     *Presence     `json:"presence,omitempty"`
	Direct       *Direct       `json:"direct,omitempty"`
	Receipt      *Receipt      `json:"receipt,omitempty"`
	Invitation   *Invitation   `json:"invitation,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        *ErrorBody    `json:"error,omitempty"`

	// SenderId is the identity the delivery block filter runs against.
	// Zero for system-level events, which are never filtered.
	SenderId int `json:"-"`
}

type ChatMessage struct {
	MessageId int       `json:"message_id"`
	RoomId    string    `json:"room_id"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Presence struct {
	RoomId   string `json:"room_id"`
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
}

type Direct struct {
	MessageId int       `json:"message_id"`
	SenderId  int       `json:"sender_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Receipt confirms a sent direct message back to its author.
type Receipt struct {
	MessageId  int       `json:"message_id"`
	ReceiverId int       `json:"receiver_id"`
	Receiver   string    `json:"receiver"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type Invitation struct {
	InvitationId int    `json:"invitation_id"`
	SenderId     int    `json:"sender_id"`
	Sender       string `json:"sender"`
}

type Notification struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FrameType discriminates inbound frames.
type FrameType string

const (
	FrameJoin    FrameType = "join"
	FrameLeave   FrameType = "leave"
	FramePublish FrameType = "publish"
	FrameDirect  FrameType = "direct"
)

// ClientFrame is the single inbound frame type. Id is an optional
// client-chosen correlation id echoed back on errors.
type ClientFrame struct {
	Id   int       `json:"id,omitempty"`
	Type FrameType `json:"type"`

	Join    *JoinPayload    `json:"join,omitempty"`
	Leave   *LeavePayload   `json:"leave,omitempty"`
	Publish *PublishPayload `json:"publish,omitempty"`
	Direct  *DirectPayload  `json:"direct,omitempty"`
}

type JoinPayload struct {
	RoomId string `json:"room_id"`
}

type LeavePayload struct {
	RoomId string `json:"room_id"`
}

type PublishPayload struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type DirectPayload struct {
	ReceiverId int    `json:"receiver_id"`
	Content    string `json:"content"`
}

func errEvent(id, code int, msg string) *Event {
	return &Event{
		Type:      EventError,
		Id:        id,
		Timestamp: Now(),
		Error: &ErrorBody{
			Code:    code,
			Message: msg,
		},
	}
}

func ErrInvalidFrame(id int) *Event {
	return errEvent(id, http.StatusBadRequest, "invalid frame")
}

func ErrRoomNotFound(id int) *Event {
	return errEvent(id, http.StatusNotFound, "room not found")
}

func ErrUserNotFound(id int) *Event {
	return errEvent(id, http.StatusNotFound, "user not found")
}

func ErrBlocked(id int) *Event {
	return errEvent(id, http.StatusForbidden, "this user has blocked you or you have blocked them")
}

func ErrInternalError(id int) *Event {
	return errEvent(id, http.StatusInternalServerError, "internal server error")
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
