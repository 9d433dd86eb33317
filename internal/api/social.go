package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/KinGoSco/chat/internal/database"
	"github.com/KinGoSco/chat/internal/server"
	"github.com/KinGoSco/chat/internal/types"
)

const pqUniqueViolation = "23505"

type SendDirectMessageRequest struct {
	ReceiverId int    `json:"receiver_id"`
	Content    string `json:"content"`
}

type BlockRequest struct {
	UserId int `json:"user_id"`
}

type CreateInvitationRequest struct {
	ReceiverId int `json:"receiver_id"`
}

type RespondInvitationRequest struct {
	InvitationId int    `json:"invitation_id"`
	Status       string `json:"status"`
}

func directMessageDTO(dm database.DirectMessage) types.DirectMessage {
	return types.DirectMessage{
		Id:         dm.Id,
		SenderId:   dm.SenderId,
		ReceiverId: dm.ReceiverId,
		Content:    dm.Content,
		IsRead:     dm.IsRead,
		Timestamp:  dm.CreatedAt,
	}
}

func blockDTO(b database.UserBlock) types.UserBlock {
	return types.UserBlock{
		Id:        b.Id,
		BlockerId: b.BlockerId,
		BlockedId: b.BlockedId,
		CreatedAt: b.CreatedAt,
	}
}

func invitationDTO(inv database.GameInvitation) types.GameInvitation {
	return types.GameInvitation{
		Id:         inv.Id,
		SenderId:   inv.SenderId,
		ReceiverId: inv.ReceiverId,
		Status:     inv.Status,
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
	}
}

func (s *ChatApp) sendDirectMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendDirectMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ReceiverId == 0 || req.Content == "" || req.ReceiverId == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sender, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dm, err := s.cs.SendDirectMessage(userDTO(sender), req.ReceiverId, req.Content, nil)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, server.ErrUserUnknown):
			errResp = NewNotFoundError()
		case errors.Is(err, server.ErrBlockedPair):
			errResp = NewForbiddenError()
		default:
			s.log.Println("send direct message:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, directMessageDTO(dm))
}

func (s *ChatApp) getDirectMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	otherStr := r.URL.Query().Get("user_id")
	if otherStr == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	otherId, err := strconv.Atoi(otherStr)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, err := s.db.GetDirectMessages(userId, otherId, limit)
	if err != nil {
		s.log.Println("get direct messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// fetching a conversation marks the other side's messages as read
	if err := s.db.MarkDirectMessagesRead(userId, otherId); err != nil {
		s.log.Println("mark direct messages read:", err)
	}

	messages := lo.Map(dbMessages, func(dm database.DirectMessage, _ int) types.DirectMessage {
		return directMessageDTO(dm)
	})

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ChatApp) getConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	partners, err := s.db.ListConversationPartners(userId)
	if err != nil {
		s.log.Println("list conversation partners:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := lo.Map(partners, func(u database.User, _ int) types.User {
		return userDTO(u)
	})

	s.writeJson(w, http.StatusOK, users)
}

func (s *ChatApp) createBlock(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.UserId == 0 || req.UserId == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(req.UserId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	block, err := s.db.CreateBlock(userId, req.UserId)
	if err != nil {
		var errResp *ApiError
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			errResp = NewConflictError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// later fan-out decisions must see the new block immediately
	s.cs.InvalidateBlock(userId, req.UserId)

	s.writeJson(w, http.StatusCreated, blockDTO(block))
}

func (s *ChatApp) deleteBlock(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	blockedStr := r.URL.Query().Get("user_id")
	if blockedStr == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	blockedId, err := strconv.Atoi(blockedStr)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteBlock(userId, blockedId); err != nil {
		s.log.Println("delete block:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.InvalidateBlock(userId, blockedId)

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) listBlocks(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbBlocks, err := s.db.ListBlocks(userId)
	if err != nil {
		s.log.Println("list blocks:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	blocks := lo.Map(dbBlocks, func(b database.UserBlock, _ int) types.UserBlock {
		return blockDTO(b)
	})

	s.writeJson(w, http.StatusOK, blocks)
}

func (s *ChatApp) createInvitation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ReceiverId == 0 || req.ReceiverId == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(req.ReceiverId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	blocked, err := s.db.IsBlocked(userId, req.ReceiverId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if blocked {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inv, err := s.db.CreateInvitation(userId, req.ReceiverId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sender, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.NotifyInvitation(inv, sender)

	s.writeJson(w, http.StatusCreated, invitationDTO(inv))
}

func (s *ChatApp) respondInvitation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RespondInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.InvitationId == 0 || (req.Status != types.InvitationAccepted && req.Status != types.InvitationDeclined) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inv, err := s.db.GetInvitation(req.InvitationId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// only the invited user can answer
	if inv.ReceiverId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// an invitation is resolved exactly once
	if inv.Status != types.InvitationPending {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.db.UpdateInvitationStatus(inv.Id, req.Status)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	responder, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.NotifyInvitationResponse(updated, responder)

	s.writeJson(w, http.StatusOK, invitationDTO(updated))
}

func (s *ChatApp) listInvitations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbInvitations, err := s.db.ListInvitations(userId)
	if err != nil {
		s.log.Println("list invitations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invitations := lo.Map(dbInvitations, func(inv database.GameInvitation, _ int) types.GameInvitation {
		return invitationDTO(inv)
	})

	s.writeJson(w, http.StatusOK, invitations)
}

func (s *ChatApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUsers, err := s.db.SearchAccounts(query, userId)
	if err != nil {
		s.log.Println("search accounts:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := lo.Map(dbUsers, func(u database.User, _ int) types.User {
		return userDTO(u)
	})

	s.writeJson(w, http.StatusOK, users)
}
