package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/KinGoSco/chat/internal/types"
)

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgChatRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, password_hash = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id, username, email, created_at, updated_at",
		params.UserId,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) SearchAccounts(query string, excludeId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email FROM accounts "+
			"WHERE (username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%') "+
			"AND id != $2 ORDER BY username LIMIT 25",
		query,
		excludeId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, name, is_private, owner_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, external_id, name, is_private, owner_id, created_at",
		params.ExternalId,
		params.Name,
		params.IsPrivate,
		params.OwnerId,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.IsPrivate,
		&room.OwnerId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, is_private, owner_id, created_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.IsPrivate,
		&room.OwnerId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgChatRepository) GetRoomWithMembers(roomId int) (*Room, error) {
	query := `
		SELECT
				r.id,
				r.external_id,
				r.name,
				r.is_private,
				r.owner_id,
				r.created_at,
				m.account_id,
				a.username,
				a.email,
				m.created_at AS joined_at
		FROM rooms r
		LEFT JOIN room_members m ON r.id = m.room_id
		LEFT JOIN accounts a ON m.account_id = a.id
		WHERE r.id = $1;
`

	rows, err := db.conn.Query(query, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room with members: %w", err)
	}
	defer rows.Close()

	var room *Room
	for rows.Next() {
		var (
			id         int
			externalId string
			name       string
			isPrivate  bool
			ownerId    int
			createdAt  time.Time
			accountId  sql.NullInt64
			username   sql.NullString
			email      sql.NullString
			joinedAt   sql.NullTime
		)

		if err := rows.Scan(&id, &externalId, &name, &isPrivate, &ownerId, &createdAt,
			&accountId, &username, &email, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}

		if room == nil {
			room = &Room{
				Id:         id,
				ExternalId: externalId,
				Name:       name,
				IsPrivate:  isPrivate,
				OwnerId:    ownerId,
				CreatedAt:  createdAt,
				Members:    make([]Member, 0),
			}
		}

		if accountId.Valid {
			room.Members = append(room.Members, Member{
				AccountId:    int(accountId.Int64),
				Username:     username.String,
				EmailAddress: email.String,
				JoinedAt:     joinedAt.Time,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if room == nil {
		return nil, sql.ErrNoRows
	}

	return room, nil
}

func (db *PgChatRepository) DeleteRoom(roomId int) error {
	_, err := db.conn.Exec("DELETE FROM rooms WHERE id = $1", roomId)
	return err
}

func (db *PgChatRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.external_id, r.name, r.is_private, r.owner_id, r.created_at "+
			"FROM rooms r JOIN room_members m ON r.id = m.room_id "+
			"WHERE m.account_id = $1 ORDER BY r.created_at",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]Room, 0)
	for rows.Next() {
		var r Room
		if err = rows.Scan(&r.Id, &r.ExternalId, &r.Name, &r.IsPrivate, &r.OwnerId, &r.CreatedAt); err != nil {
			break
		}

		rooms = append(rooms, r)
	}

	return rooms, err
}

func (db *PgChatRepository) AddRoomMember(roomId, accountId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_members (room_id, account_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (room_id, account_id) DO NOTHING",
		roomId,
		accountId,
		time.Now().UTC(),
	)
	return err
}

func (db *PgChatRepository) RemoveRoomMember(roomId, accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM room_members WHERE room_id = $1 AND account_id = $2",
		roomId,
		accountId,
	)
	return err
}

func (db *PgChatRepository) IsRoomMember(roomId, accountId int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND account_id = $2)",
		roomId,
		accountId,
	)

	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// CreateMessage persists a room message and returns the stored row,
// including the database-assigned id and timestamp.
func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, room_id, user_id, content, created_at",
		params.RoomId,
		params.UserId,
		params.Content,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.UserId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) GetMessages(roomId, after, before, limit int) ([]Message, error) {
	var upper, lower int = 1<<31 - 1, 0
	if before > 0 {
		upper = before - 1
	}

	if after > 0 {
		lower = after + 1
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		"SELECT m.id, m.room_id, m.user_id, a.username, m.content, m.created_at "+
			"FROM messages m JOIN accounts a ON m.user_id = a.id "+
			"WHERE m.room_id = $1 AND m.id BETWEEN $2 AND $3 ORDER BY m.id DESC LIMIT $4",
		roomId,
		lower,
		upper,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

// CreateDirectMessage persists a direct message and returns the stored
// row with its database-assigned id and timestamp.
func (db *PgChatRepository) CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error) {
	res := db.conn.QueryRow(
		"INSERT INTO direct_messages (sender_id, receiver_id, content, is_read, created_at) "+
			"VALUES ($1, $2, $3, FALSE, $4) RETURNING id, sender_id, receiver_id, content, is_read, created_at",
		params.SenderId,
		params.ReceiverId,
		params.Content,
		time.Now().UTC(),
	)

	var dm DirectMessage
	err := res.Scan(
		&dm.Id,
		&dm.SenderId,
		&dm.ReceiverId,
		&dm.Content,
		&dm.IsRead,
		&dm.CreatedAt,
	)

	return dm, err
}

func (db *PgChatRepository) GetDirectMessages(accountId, otherId, limit int) ([]DirectMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, content, is_read, created_at FROM direct_messages "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY created_at LIMIT $3",
		accountId,
		otherId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]DirectMessage, 0, limit)
	for rows.Next() {
		var dm DirectMessage
		if err = rows.Scan(&dm.Id, &dm.SenderId, &dm.ReceiverId, &dm.Content, &dm.IsRead, &dm.CreatedAt); err != nil {
			break
		}

		messages = append(messages, dm)
	}

	return messages, err
}

func (db *PgChatRepository) MarkDirectMessagesRead(accountId, otherId int) error {
	_, err := db.conn.Exec(
		"UPDATE direct_messages SET is_read = TRUE "+
			"WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE",
		accountId,
		otherId,
	)
	return err
}

func (db *PgChatRepository) ListConversationPartners(accountId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT a.id, a.username, a.email FROM accounts a "+
			"JOIN direct_messages dm ON a.id = dm.sender_id OR a.id = dm.receiver_id "+
			"WHERE (dm.sender_id = $1 OR dm.receiver_id = $1) AND a.id != $1 "+
			"ORDER BY a.username",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (db *PgChatRepository) CreateBlock(blockerId, blockedId int) (UserBlock, error) {
	res := db.conn.QueryRow(
		"INSERT INTO user_blocks (blocker_id, blocked_id, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, blocker_id, blocked_id, created_at",
		blockerId,
		blockedId,
		time.Now().UTC(),
	)

	var block UserBlock
	err := res.Scan(
		&block.Id,
		&block.BlockerId,
		&block.BlockedId,
		&block.CreatedAt,
	)

	return block, err
}

func (db *PgChatRepository) DeleteBlock(blockerId, blockedId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2",
		blockerId,
		blockedId,
	)
	return err
}

func (db *PgChatRepository) ListBlocks(blockerId int) ([]UserBlock, error) {
	rows, err := db.conn.Query(
		"SELECT id, blocker_id, blocked_id, created_at FROM user_blocks WHERE blocker_id = $1",
		blockerId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks = make([]UserBlock, 0)
	for rows.Next() {
		var b UserBlock
		if err = rows.Scan(&b.Id, &b.BlockerId, &b.BlockedId, &b.CreatedAt); err != nil {
			break
		}

		blocks = append(blocks, b)
	}

	return blocks, err
}

// IsBlocked reports whether a block relation exists between the two
// accounts in either direction.
func (db *PgChatRepository) IsBlocked(a, b int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM user_blocks "+
			"WHERE (blocker_id = $1 AND blocked_id = $2) OR (blocker_id = $2 AND blocked_id = $1))",
		a,
		b,
	)

	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// BlockedByAnyMember reports whether any current member of the room has
// blocked the given account. The check is directional: it does not
// consider blocks the account itself holds against members.
func (db *PgChatRepository) BlockedByAnyMember(roomId, accountId int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM user_blocks b "+
			"JOIN room_members m ON b.blocker_id = m.account_id "+
			"WHERE m.room_id = $1 AND b.blocked_id = $2)",
		roomId,
		accountId,
	)

	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

func (db *PgChatRepository) CreateInvitation(senderId, receiverId int) (GameInvitation, error) {
	res := db.conn.QueryRow(
		"INSERT INTO game_invitations (sender_id, receiver_id, status, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, sender_id, receiver_id, status, created_at",
		senderId,
		receiverId,
		types.InvitationPending,
		time.Now().UTC(),
	)

	var inv GameInvitation
	err := res.Scan(
		&inv.Id,
		&inv.SenderId,
		&inv.ReceiverId,
		&inv.Status,
		&inv.CreatedAt,
	)

	return inv, err
}

func (db *PgChatRepository) GetInvitation(invitationId int) (GameInvitation, error) {
	row := db.conn.QueryRow(
		"SELECT id, sender_id, receiver_id, status, created_at FROM game_invitations "+
			"WHERE id = $1 LIMIT 1",
		invitationId,
	)

	var inv GameInvitation
	err := row.Scan(
		&inv.Id,
		&inv.SenderId,
		&inv.ReceiverId,
		&inv.Status,
		&inv.CreatedAt,
	)

	return inv, err
}

func (db *PgChatRepository) UpdateInvitationStatus(invitationId int, status string) (GameInvitation, error) {
	res := db.conn.QueryRow(
		"UPDATE game_invitations SET status = $2, updated_at = $3 "+
			"WHERE id = $1 RETURNING id, sender_id, receiver_id, status, created_at, updated_at",
		invitationId,
		status,
		time.Now().UTC(),
	)

	var inv GameInvitation
	err := res.Scan(
		&inv.Id,
		&inv.SenderId,
		&inv.ReceiverId,
		&inv.Status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)

	return inv, err
}

func (db *PgChatRepository) ListInvitations(accountId int) ([]GameInvitation, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, status, created_at FROM game_invitations "+
			"WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations = make([]GameInvitation, 0)
	for rows.Next() {
		var inv GameInvitation
		if err = rows.Scan(&inv.Id, &inv.SenderId, &inv.ReceiverId, &inv.Status, &inv.CreatedAt); err != nil {
			break
		}

		invitations = append(invitations, inv)
	}

	return invitations, err
}
