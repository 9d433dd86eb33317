package database

type ChatRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	SearchAccounts(query string, excludeId int) ([]User, error)

	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	GetRoomWithMembers(roomId int) (*Room, error)
	DeleteRoom(roomId int) error
	ListRoomsForAccount(accountId int) ([]Room, error)
	AddRoomMember(roomId, accountId int) error
	RemoveRoomMember(roomId, accountId int) error
	IsRoomMember(roomId, accountId int) (bool, error)

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(roomId, after, before, limit int) ([]Message, error)

	CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error)
	GetDirectMessages(accountId, otherId, limit int) ([]DirectMessage, error)
	MarkDirectMessagesRead(accountId, otherId int) error
	ListConversationPartners(accountId int) ([]User, error)

	CreateBlock(blockerId, blockedId int) (UserBlock, error)
	DeleteBlock(blockerId, blockedId int) error
	ListBlocks(blockerId int) ([]UserBlock, error)
	IsBlocked(a, b int) (bool, error)
	BlockedByAnyMember(roomId, accountId int) (bool, error)

	CreateInvitation(senderId, receiverId int) (GameInvitation, error)
	GetInvitation(invitationId int) (GameInvitation, error)
	UpdateInvitationStatus(invitationId int, status string) (GameInvitation, error)
	ListInvitations(accountId int) ([]GameInvitation, error)
}
