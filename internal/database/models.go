package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id         int
	ExternalId string
	Name       string
	IsPrivate  bool
	OwnerId    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Members    []Member
}

// Member is a row of the room membership relation joined with the
// member's account.
type Member struct {
	AccountId    int
	Username     string
	EmailAddress string
	JoinedAt     time.Time
}

type Message struct {
	Id        int
	RoomId    int
	UserId    int
	Username  string
	Content   string
	CreatedAt time.Time
}

type DirectMessage struct {
	Id         int
	SenderId   int
	ReceiverId int
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}

type UserBlock struct {
	Id        int
	BlockerId int
	BlockedId int
	CreatedAt time.Time
}

type GameInvitation struct {
	Id         int
	SenderId   int
	ReceiverId int
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	PasswordHash string
}

type CreateRoomParams struct {
	Name       string
	ExternalId string
	IsPrivate  bool
	OwnerId    int
}

type CreateMessageParams struct {
	RoomId  int
	UserId  int
	Content string
}

type CreateDirectMessageParams struct {
	SenderId   int
	ReceiverId int
	Content    string
}
