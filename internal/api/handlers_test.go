package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/KinGoSco/chat/internal/config"
	"github.com/KinGoSco/chat/internal/database"
	"github.com/KinGoSco/chat/internal/server"
	"github.com/KinGoSco/chat/internal/stats"
	"github.com/KinGoSco/chat/internal/testutil"
	"github.com/KinGoSco/chat/internal/types"
)

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func newTestApp(t *testing.T, repo *database.MockChatRepository) *ChatApp {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	cs, err := server.NewChatServer(testutil.TestLogger(t), repo, su, 8)
	if err != nil {
		t.Fatalf("NewChatServer: %v", err)
	}

	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	return NewChatApp(http.NewServeMux(), testutil.TestLogger(t), cs, repo, su, cfg)
}

// authedRequest builds a request whose context carries the user id, as
// the auth middleware would.
func authedRequest(method, target string, body any, userId int) *http.Request {
	buf := &bytes.Buffer{}
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			json.NewEncoder(buf).Encode(v)
		}
	}

	req := httptest.NewRequest(method, target, buf)
	return req.WithContext(WithUserId(req.Context(), userId))
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	expectedUser := database.User{
		Id:           1,
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	tcases := []struct {
		name        string
		body        any
		success     bool
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name: "successfully creates a new account",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			success: true,
		},
		{
			name:        "fails with invalid json body",
			body:        "invalid json",
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing username",
			body: RegisterRequest{
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails when the database rejects the account",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			mockErr:     errors.New("db error"),
			expectedErr: NewInternalServerError(nil),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.success || tc.mockErr != nil {
				mockRepo.On("CreateAccount", mock.MatchedBy(func(params database.CreateAccountParams) bool {
					return params.Username == expectedUser.Username &&
						params.EmailAddress == expectedUser.EmailAddress &&
						verifyPassword(params.PasswordHash, "password")
				})).Return(expectedUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()

			buf := &bytes.Buffer{}
			switch v := tc.body.(type) {
			case string:
				buf.WriteString(v)
			default:
				json.NewEncoder(buf).Encode(v)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", buf)

			app.createAccount(rr, req)

			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code)
				return
			}

			assert.Equal(t, http.StatusCreated, rr.Code)

			var u types.User
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
			assert.Equal(t, expectedUser.Id, u.Id)
			assert.Equal(t, expectedUser.Username, u.Username)
			assert.Equal(t, expectedUser.EmailAddress, u.EmailAddress)
		})
	}
}

func TestLoginHandler(t *testing.T) {
	pwdHash, err := hashPassword("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	dbUser := database.User{
		Id:           1,
		Username:     "testuser",
		EmailAddress: "testuser@example.com",
		PasswordHash: pwdHash,
	}

	tcases := []struct {
		name         string
		body         any
		mockUser     database.User
		mockErr      error
		expectedCode int
		expectCookie bool
	}{
		{
			name:         "successful login sets a token cookie",
			body:         LoginRequest{Email: dbUser.EmailAddress, Password: "password"},
			mockUser:     dbUser,
			expectedCode: http.StatusOK,
			expectCookie: true,
		},
		{
			name:         "wrong password",
			body:         LoginRequest{Email: dbUser.EmailAddress, Password: "wrong"},
			mockUser:     dbUser,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown email",
			body:         LoginRequest{Email: "nobody@example.com", Password: "password"},
			mockErr:      sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "missing fields",
			body:         LoginRequest{Email: dbUser.EmailAddress},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if lr, ok := tc.body.(LoginRequest); ok && lr.Email != "" && lr.Password != "" {
				mockRepo.On("GetAccountByEmail", lr.Email).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()

			buf := &bytes.Buffer{}
			json.NewEncoder(buf).Encode(tc.body)
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", buf)

			app.login(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			cookie := findCookie(rr, tokenCookieKey)
			if tc.expectCookie {
				assert.NotNil(t, cookie, "expected a token cookie to be set")
				userId, err := app.extractUserIdFromToken(cookie.Value)
				assert.NoError(t, err)
				assert.Equal(t, dbUser.Id, userId)
			} else {
				assert.Nil(t, cookie)
			}
		})
	}
}

func Test_logout(t *testing.T) {
	app := newTestApp(t, &database.MockChatRepository{})

	rr := httptest.NewRecorder()
	app.logout(rr, httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, tokenCookieKey)
	assert.NotNil(t, cookie)
	assert.Empty(t, cookie.Value, "logout overwrites the cookie with an empty token")
}

func Test_createRoom(t *testing.T) {
	mockRoom := database.Room{
		Id:         1,
		Name:       "Test Room",
		ExternalId: "EoGKUXPHgz",
		OwnerId:    1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	tcases := []struct {
		name         string
		body         any
		userId       int
		shortIdErr   error
		createErr    error
		memberErr    error
		expectedCode int
	}{
		{
			name:         "successfully creates a room",
			body:         CreateRoomRequest{Name: mockRoom.Name},
			userId:       1,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "fails with empty name",
			body:         CreateRoomRequest{},
			userId:       1,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "fails when short id generation fails",
			body:         CreateRoomRequest{Name: mockRoom.Name},
			userId:       1,
			shortIdErr:   errors.New("exhausted"),
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "fails when the database rejects the room",
			body:         CreateRoomRequest{Name: mockRoom.Name},
			userId:       1,
			createErr:    errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.expectedCode != http.StatusBadRequest && tc.shortIdErr == nil {
				mockRepo.On("CreateRoom", mock.MatchedBy(func(params database.CreateRoomParams) bool {
					return params.Name == mockRoom.Name &&
						params.OwnerId == tc.userId &&
						params.ExternalId == mockRoom.ExternalId
				})).Return(mockRoom, tc.createErr).Once()
			}
			if tc.expectedCode == http.StatusCreated {
				mockRepo.On("AddRoomMember", mockRoom.Id, tc.userId).Return(tc.memberErr).Once()
			}

			app := newTestApp(t, mockRepo)
			app.generateShortId = func() (string, error) {
				if tc.shortIdErr != nil {
					return "", tc.shortIdErr
				}
				return mockRoom.ExternalId, nil
			}

			rr := httptest.NewRecorder()
			req := authedRequest(http.MethodPost, "/api/rooms", tc.body, tc.userId)
			app.createRoom(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusCreated {
				var room types.Room
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
				assert.Equal(t, mockRoom.ExternalId, room.ExternalId)
				assert.Equal(t, mockRoom.Name, room.Name)
				assert.Equal(t, tc.userId, room.OwnerId)
			}
		})
	}
}

func Test_getRoom(t *testing.T) {
	mockRoom := database.Room{
		Id:         1,
		Name:       "Test Room",
		ExternalId: "EoGKUXPHgz",
		IsPrivate:  true,
		OwnerId:    1,
	}

	t.Run("private room hidden from non-members", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, 2).Return(false, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/rooms?id="+mockRoom.ExternalId, nil, 2)
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("returns the room with its members", func(t *testing.T) {
		withMembers := mockRoom
		withMembers.Members = []database.Member{
			{AccountId: 1, Username: "owner"},
			{AccountId: 2, Username: "member"},
		}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, 1).Return(true, nil).Once()
		mockRepo.On("GetRoomWithMembers", mockRoom.Id).Return(&withMembers, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/rooms?id="+mockRoom.ExternalId, nil, 1)
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
		assert.Len(t, room.Members, 2)
		assert.Equal(t, "owner", room.Members[0].Username)
	})

	t.Run("unknown room", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/rooms?id=missing", nil, 1)
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func Test_addRoomMember(t *testing.T) {
	mockRoom := database.Room{Id: 1, ExternalId: "EoGKUXPHgz", OwnerId: 1, IsPrivate: true}
	mockUser := database.User{Id: 2, Username: "invitee"}

	t.Run("owner adds a member", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("GetAccountById", mockUser.Id).Return(mockUser, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, mockUser.Id).Return(false, nil).Once()
		mockRepo.On("AddRoomMember", mockRoom.Id, mockUser.Id).Return(nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/rooms/members",
			RoomMemberRequest{RoomId: mockRoom.ExternalId, UserId: mockUser.Id}, 1)
		app.addRoomMember(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("non-owner cannot add others to a private room", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/rooms/members",
			RoomMemberRequest{RoomId: mockRoom.ExternalId, UserId: 3}, 2)
		app.addRoomMember(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("already a member", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("GetAccountById", mockUser.Id).Return(mockUser, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, mockUser.Id).Return(true, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/rooms/members",
			RoomMemberRequest{RoomId: mockRoom.ExternalId, UserId: mockUser.Id}, 1)
		app.addRoomMember(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func Test_getMessages(t *testing.T) {
	mockRoom := database.Room{Id: 1, ExternalId: "EoGKUXPHgz"}
	now := time.Now().UTC()
	dbMessages := []database.Message{
		{Id: 1, RoomId: 1, UserId: 1, Username: "alice", Content: "first", CreatedAt: now},
		{Id: 2, RoomId: 1, UserId: 2, Username: "bob", Content: "second", CreatedAt: now},
	}

	t.Run("members can page through history", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, 1).Return(true, nil).Once()
		mockRepo.On("GetMessages", mockRoom.Id, 0, 5, 10).Return(dbMessages, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		target := fmt.Sprintf("/api/messages?room_id=%s&before=5&limit=10", mockRoom.ExternalId)
		req := authedRequest(http.MethodGet, target, nil, 1)
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var messages []types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages))
		assert.Len(t, messages, 2)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "alice", messages[0].Username)
	})

	t.Run("non-members are rejected", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, 9).Return(false, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/messages?room_id="+mockRoom.ExternalId, nil, 9)
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func Test_postMessage(t *testing.T) {
	mockRoom := database.Room{Id: 1, ExternalId: "EoGKUXPHgz"}
	sender := database.User{Id: 1, Username: "alice"}

	t.Run("persists and returns the message", func(t *testing.T) {
		stored := database.Message{Id: 9, RoomId: mockRoom.Id, UserId: sender.Id, Content: "hello", CreatedAt: time.Now().UTC()}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", sender.Id).Return(sender, nil).Once()
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, sender.Id).Return(true, nil).Once()
		mockRepo.On("BlockedByAnyMember", mockRoom.Id, sender.Id).Return(false, nil).Once()
		mockRepo.On("CreateMessage", database.CreateMessageParams{RoomId: mockRoom.Id, UserId: sender.Id, Content: "hello"}).
			Return(stored, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/messages",
			PostMessageRequest{RoomId: mockRoom.ExternalId, Content: "hello"}, sender.Id)
		app.postMessage(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var msg types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
		assert.Equal(t, stored.Id, msg.Id)
		assert.Equal(t, "hello", msg.Content)
	})

	t.Run("blocked sender is rejected", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", sender.Id).Return(sender, nil).Once()
		mockRepo.On("GetRoomByExternalId", mockRoom.ExternalId).Return(mockRoom, nil).Once()
		mockRepo.On("IsRoomMember", mockRoom.Id, sender.Id).Return(true, nil).Once()
		mockRepo.On("BlockedByAnyMember", mockRoom.Id, sender.Id).Return(true, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/messages",
			PostMessageRequest{RoomId: mockRoom.ExternalId, Content: "hello"}, sender.Id)
		app.postMessage(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		mockRepo.AssertNotCalled(t, "CreateMessage")
	})
}

func Test_sendDirectMessage(t *testing.T) {
	sender := database.User{Id: 1, Username: "alice"}
	receiver := database.User{Id: 2, Username: "bob"}

	t.Run("persists and returns the direct message", func(t *testing.T) {
		stored := database.DirectMessage{Id: 3, SenderId: sender.Id, ReceiverId: receiver.Id, Content: "hi", CreatedAt: time.Now().UTC()}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", sender.Id).Return(sender, nil).Once()
		mockRepo.On("GetAccountById", receiver.Id).Return(receiver, nil).Once()
		mockRepo.On("IsBlocked", sender.Id, receiver.Id).Return(false, nil).Once()
		mockRepo.On("CreateDirectMessage", database.CreateDirectMessageParams{SenderId: sender.Id, ReceiverId: receiver.Id, Content: "hi"}).
			Return(stored, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/dms",
			SendDirectMessageRequest{ReceiverId: receiver.Id, Content: "hi"}, sender.Id)
		app.sendDirectMessage(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var dm types.DirectMessage
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&dm))
		assert.Equal(t, stored.Id, dm.Id)
		assert.Equal(t, receiver.Id, dm.ReceiverId)
	})

	t.Run("blocked pair", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", sender.Id).Return(sender, nil).Once()
		mockRepo.On("GetAccountById", receiver.Id).Return(receiver, nil).Once()
		mockRepo.On("IsBlocked", sender.Id, receiver.Id).Return(true, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/dms",
			SendDirectMessageRequest{ReceiverId: receiver.Id, Content: "hi"}, sender.Id)
		app.sendDirectMessage(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		mockRepo.AssertNotCalled(t, "CreateDirectMessage")
	})

	t.Run("messaging yourself", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{})
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/dms",
			SendDirectMessageRequest{ReceiverId: sender.Id, Content: "hi"}, sender.Id)
		app.sendDirectMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_createBlock(t *testing.T) {
	blocked := database.User{Id: 2, Username: "bob"}

	t.Run("creates the block", func(t *testing.T) {
		stored := database.UserBlock{Id: 1, BlockerId: 1, BlockedId: blocked.Id, CreatedAt: time.Now().UTC()}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", blocked.Id).Return(blocked, nil).Once()
		mockRepo.On("CreateBlock", 1, blocked.Id).Return(stored, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/blocks", BlockRequest{UserId: blocked.Id}, 1)
		app.createBlock(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var b types.UserBlock
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&b))
		assert.Equal(t, blocked.Id, b.BlockedId)
	})

	t.Run("blocking yourself", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{})
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/blocks", BlockRequest{UserId: 1}, 1)
		app.createBlock(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_deleteBlock(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("DeleteBlock", 1, 2).Return(nil).Once()

	app := newTestApp(t, mockRepo)
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodDelete, "/api/blocks?user_id=2", nil, 1)
	app.deleteBlock(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func Test_respondInvitation(t *testing.T) {
	pending := database.GameInvitation{Id: 5, SenderId: 1, ReceiverId: 2, Status: types.InvitationPending}

	t.Run("receiver accepts", func(t *testing.T) {
		accepted := pending
		accepted.Status = types.InvitationAccepted
		responder := database.User{Id: 2, Username: "bob", EmailAddress: "bob@example.com"}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetInvitation", pending.Id).Return(pending, nil).Once()
		mockRepo.On("UpdateInvitationStatus", pending.Id, types.InvitationAccepted).Return(accepted, nil).Once()
		mockRepo.On("GetAccountById", responder.Id).Return(responder, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPut, "/api/invitations",
			RespondInvitationRequest{InvitationId: pending.Id, Status: types.InvitationAccepted}, 2)
		app.respondInvitation(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var inv types.GameInvitation
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&inv))
		assert.Equal(t, types.InvitationAccepted, inv.Status)
	})

	t.Run("only the receiver may respond", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetInvitation", pending.Id).Return(pending, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPut, "/api/invitations",
			RespondInvitationRequest{InvitationId: pending.Id, Status: types.InvitationDeclined}, 1)
		app.respondInvitation(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("already resolved", func(t *testing.T) {
		resolved := pending
		resolved.Status = types.InvitationDeclined

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetInvitation", pending.Id).Return(resolved, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPut, "/api/invitations",
			RespondInvitationRequest{InvitationId: pending.Id, Status: types.InvitationAccepted}, 2)
		app.respondInvitation(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockRepo.AssertNotCalled(t, "UpdateInvitationStatus")
	})

	t.Run("bad status", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{})
		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPut, "/api/invitations",
			RespondInvitationRequest{InvitationId: pending.Id, Status: "maybe"}, 2)
		app.respondInvitation(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
