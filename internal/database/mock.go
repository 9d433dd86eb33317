package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) SearchAccounts(query string, excludeId int) ([]User, error) {
	args := m.Called(query, excludeId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomWithMembers(roomId int) (*Room, error) {
	args := m.Called(roomId)
	if room, ok := args.Get(0).(*Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) DeleteRoom(roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockChatRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) AddRoomMember(roomId, accountId int) error {
	args := m.Called(roomId, accountId)
	return args.Error(0)
}
func (m *MockChatRepository) RemoveRoomMember(roomId, accountId int) error {
	args := m.Called(roomId, accountId)
	return args.Error(0)
}
func (m *MockChatRepository) IsRoomMember(roomId, accountId int) (bool, error) {
	args := m.Called(roomId, accountId)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessages(roomId, after, before, limit int) ([]Message, error) {
	args := m.Called(roomId, after, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error) {
	args := m.Called(params)
	return args.Get(0).(DirectMessage), args.Error(1)
}
func (m *MockChatRepository) GetDirectMessages(accountId, otherId, limit int) ([]DirectMessage, error) {
	args := m.Called(accountId, otherId, limit)
	return args.Get(0).([]DirectMessage), args.Error(1)
}
func (m *MockChatRepository) MarkDirectMessagesRead(accountId, otherId int) error {
	args := m.Called(accountId, otherId)
	return args.Error(0)
}
func (m *MockChatRepository) ListConversationPartners(accountId int) ([]User, error) {
	args := m.Called(accountId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockChatRepository) CreateBlock(blockerId, blockedId int) (UserBlock, error) {
	args := m.Called(blockerId, blockedId)
	return args.Get(0).(UserBlock), args.Error(1)
}
func (m *MockChatRepository) DeleteBlock(blockerId, blockedId int) error {
	args := m.Called(blockerId, blockedId)
	return args.Error(0)
}
func (m *MockChatRepository) ListBlocks(blockerId int) ([]UserBlock, error) {
	args := m.Called(blockerId)
	return args.Get(0).([]UserBlock), args.Error(1)
}
func (m *MockChatRepository) IsBlocked(a, b int) (bool, error) {
	args := m.Called(a, b)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) BlockedByAnyMember(roomId, accountId int) (bool, error) {
	args := m.Called(roomId, accountId)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) CreateInvitation(senderId, receiverId int) (GameInvitation, error) {
	args := m.Called(senderId, receiverId)
	return args.Get(0).(GameInvitation), args.Error(1)
}
func (m *MockChatRepository) GetInvitation(invitationId int) (GameInvitation, error) {
	args := m.Called(invitationId)
	return args.Get(0).(GameInvitation), args.Error(1)
}
func (m *MockChatRepository) UpdateInvitationStatus(invitationId int, status string) (GameInvitation, error) {
	args := m.Called(invitationId, status)
	return args.Get(0).(GameInvitation), args.Error(1)
}
func (m *MockChatRepository) ListInvitations(accountId int) ([]GameInvitation, error) {
	args := m.Called(accountId)
	return args.Get(0).([]GameInvitation), args.Error(1)
}
