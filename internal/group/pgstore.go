package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwise1/outpost/internal/db"
	"github.com/bwise1/outpost/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres Store.
type PGStore struct {
	pgQueries
	db *db.DB
}

func NewPGStore(database *db.DB) *PGStore {
	return &PGStore{pgQueries: pgQueries{q: database.Pool()}, db: database}
}

func (s *PGStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	return s.db.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(pgQueries{q: tx})
	})
}

type pgQueries struct {
	q querier
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

const groupColumns = `g.id, g.name, g.description, g.invite_code, g.created_by, g.is_private,
	g.member_limit, g.avatar_color, g.emoji, g.created_at, g.updated_at`

func scanGroup(row pgx.Row, extra ...any) (model.Group, error) {
	var g model.Group
	dest := []any{
		&g.ID, &g.Name, &g.Description, &g.InviteCode, &g.CreatedBy, &g.IsPrivate,
		&g.MemberLimit, &g.AvatarColor, &g.Emoji, &g.CreatedAt, &g.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return g, err
}

func (p pgQueries) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := p.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_groups WHERE invite_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (p pgQueries) InsertGroup(ctx context.Context, g *model.Group) error {
	err := p.q.QueryRow(ctx, `
		INSERT INTO chat_groups (id, name, description, invite_code, created_by, is_private, member_limit, avatar_color, emoji)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, g.ID, g.Name, g.Description, g.InviteCode, g.CreatedBy, g.IsPrivate, g.MemberLimit, g.AvatarColor, g.Emoji,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if isUniqueViolation(err, "chat_groups_invite_code_key") {
		return ErrInviteCodeCollision
	}
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

func (p pgQueries) GetGroup(ctx context.Context, groupID uuid.UUID) (model.Group, error) {
	var count int
	g, err := scanGroup(p.q.QueryRow(ctx, `
		SELECT `+groupColumns+`, (SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id)
		FROM chat_groups g
		WHERE g.id = $1
	`, groupID), &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("loading group: %w", err)
	}
	g.MemberCount = count
	return g, nil
}

func (p pgQueries) LockGroup(ctx context.Context, groupID uuid.UUID) (model.Group, error) {
	g, err := scanGroup(p.q.QueryRow(ctx, `SELECT `+groupColumns+` FROM chat_groups g WHERE g.id = $1 FOR UPDATE`, groupID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("locking group: %w", err)
	}
	return g, nil
}

func (p pgQueries) LockGroupByCode(ctx context.Context, code string) (model.Group, error) {
	g, err := scanGroup(p.q.QueryRow(ctx, `SELECT `+groupColumns+` FROM chat_groups g WHERE g.invite_code = $1 FOR UPDATE`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("locking group by code: %w", err)
	}
	return g, nil
}

func (p pgQueries) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	if _, err := p.q.Exec(ctx, `DELETE FROM chat_groups WHERE id = $1`, groupID); err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return nil
}

func (p pgQueries) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]model.Group, error) {
	rows, err := p.q.Query(ctx, `
		SELECT `+groupColumns+`,
			(SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id),
			gm.role
		FROM chat_groups g
		JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = $1
		ORDER BY gm.last_active_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user groups: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		var count int
		var role model.Role
		g, err := scanGroup(rows, &count, &role)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		g.MemberCount = count
		g.MyRole = role
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (p pgQueries) InsertMember(ctx context.Context, m model.GroupMember) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at, last_active_at)
		VALUES ($1, $2, $3, $4, $4)
	`, m.GroupID, m.UserID, string(m.Role), m.JoinedAt)
	if isUniqueViolation(err, "") {
		return ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

func (p pgQueries) MemberRole(ctx context.Context, groupID, userID uuid.UUID) (model.Role, error) {
	var role string
	err := p.q.QueryRow(ctx, `SELECT role FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleNone, ErrNotMember
	}
	if err != nil {
		return RoleNone, fmt.Errorf("loading membership: %w", err)
	}
	return model.Role(role), nil
}

func (p pgQueries) CountMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&n)
	return n, err
}

func (p pgQueries) ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error) {
	rows, err := p.q.Query(ctx, `
		SELECT gm.group_id, gm.user_id, u.username, u.avatar_url, gm.role, gm.joined_at, gm.last_active_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY CASE gm.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, gm.joined_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	members := []model.GroupMember{}
	for rows.Next() {
		var m model.GroupMember
		var role string
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Username, &m.AvatarURL, &role, &m.JoinedAt, &m.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		m.Role = model.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p pgQueries) MemberIDs(ctx context.Context, groupID uuid.UUID, roles ...model.Role) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1`
	args := []any{groupID}
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		query += ` AND role = ANY($2)`
		args = append(args, names)
	}

	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying member ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (p pgQueries) DeleteMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := p.q.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	return nil
}

func (p pgQueries) UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role model.Role) error {
	if _, err := p.q.Exec(ctx, `UPDATE group_members SET role = $3 WHERE group_id = $1 AND user_id = $2`, groupID, userID, string(role)); err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}
	return nil
}

func (p pgQueries) TouchMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := p.q.Exec(ctx, `UPDATE group_members SET last_active_at = NOW() WHERE group_id = $1 AND user_id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("touching member: %w", err)
	}
	return nil
}

func (p pgQueries) Username(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := p.q.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return name, err
}

func (p pgQueries) HasActiveBan(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var banned bool
	err := p.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_bans WHERE group_id = $1 AND user_id = $2 AND unbanned_at IS NULL)
	`, groupID, userID).Scan(&banned)
	return banned, err
}

func (p pgQueries) InsertBan(ctx context.Context, b model.GroupBan) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO group_bans (id, group_id, user_id, banned_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.GroupID, b.UserID, b.BannedBy, b.Reason, b.CreatedAt)
	if isUniqueViolation(err, "idx_group_bans_active") {
		return ErrAlreadyBanned
	}
	if err != nil {
		return fmt.Errorf("inserting ban: %w", err)
	}
	return nil
}

func (p pgQueries) LiftBan(ctx context.Context, groupID, userID, liftedBy uuid.UUID) (bool, error) {
	tag, err := p.q.Exec(ctx, `
		UPDATE group_bans SET unbanned_at = NOW(), unbanned_by = $3
		WHERE group_id = $1 AND user_id = $2 AND unbanned_at IS NULL
	`, groupID, userID, liftedBy)
	if err != nil {
		return false, fmt.Errorf("lifting ban: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p pgQueries) ListBans(ctx context.Context, groupID uuid.UUID) ([]model.GroupBan, error) {
	rows, err := p.q.Query(ctx, `
		SELECT id, group_id, user_id, banned_by, reason, created_at
		FROM group_bans
		WHERE group_id = $1 AND unbanned_at IS NULL
		ORDER BY created_at DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying bans: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GroupBan, error) {
		var b model.GroupBan
		err := row.Scan(&b.ID, &b.GroupID, &b.UserID, &b.BannedBy, &b.Reason, &b.CreatedAt)
		return b, err
	})
}

func (p pgQueries) InsertAdminAction(ctx context.Context, groupID, adminID uuid.UUID, target *uuid.UUID, action model.AdminAction, reason string) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO group_admin_actions (id, group_id, admin_id, target_user_id, action, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), groupID, adminID, target, string(action), reason)
	if err != nil {
		return fmt.Errorf("recording admin action: %w", err)
	}
	return nil
}

func (p pgQueries) InsertMessage(ctx context.Context, m *model.GroupMessage) error {
	err := p.q.QueryRow(ctx, `
		INSERT INTO group_messages (id, group_id, user_id, message_type, content, location_id, reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, m.ID, m.GroupID, m.UserID, string(m.MessageType), m.Content, m.LocationID, m.ReplyToID).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (p pgQueries) ListMessages(ctx context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]model.GroupMessage, error) {
	args := []any{groupID}
	argCount := 1

	whereClause := ""
	if before != nil {
		argCount++
		whereClause = fmt.Sprintf(" AND m.created_at < $%d", argCount)
		args = append(args, *before)
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.group_id, m.user_id, u.username, m.message_type, m.content,
			m.location_id, m.reply_to_id, m.created_at,
			p.id, pu.username, p.content,
			l.title, l.latitude, l.longitude,
			(SELECT COUNT(*) FROM group_message_likes gl WHERE gl.message_id = m.id)
		FROM group_messages m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN group_messages p ON p.id = m.reply_to_id
		LEFT JOIN users pu ON pu.id = p.user_id
		LEFT JOIN locations l ON l.id = m.location_id
		WHERE m.group_id = $1 %s
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $%d
	`, whereClause, argCount+1)
	args = append(args, limit)

	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []model.GroupMessage{}
	for rows.Next() {
		var m model.GroupMessage
		var msgType string
		var parentID *uuid.UUID
		var parentUser, parentContent *string
		err := rows.Scan(
			&m.ID, &m.GroupID, &m.UserID, &m.Username, &msgType, &m.Content,
			&m.LocationID, &m.ReplyToID, &m.CreatedAt,
			&parentID, &parentUser, &parentContent,
			&m.LocationTitle, &m.Latitude, &m.Longitude,
			&m.LikeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.MessageType = model.MessageType(msgType)
		if parentID != nil && parentUser != nil && parentContent != nil {
			m.ReplyTo = &model.MessageReply{ID: *parentID, Username: *parentUser, Content: *parentContent}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (p pgQueries) MessageInGroup(ctx context.Context, groupID, messageID uuid.UUID) (bool, error) {
	var ok bool
	err := p.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM group_messages WHERE id = $1 AND group_id = $2)`, messageID, groupID).Scan(&ok)
	return ok, err
}

func (p pgQueries) ToggleMessageLike(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM group_message_likes WHERE message_id = $1 AND user_id = $2`, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("removing message like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = p.q.Exec(ctx, `INSERT INTO group_message_likes (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("adding message like: %w", err)
	}
	return true, nil
}

func (p pgQueries) MessageLikeCount(ctx context.Context, messageID uuid.UUID) (int, error) {
	var n int
	err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM group_message_likes WHERE message_id = $1`, messageID).Scan(&n)
	return n, err
}

func (p pgQueries) LocationTitle(ctx context.Context, locationID uuid.UUID) (string, error) {
	var title string
	err := p.q.QueryRow(ctx, `SELECT title FROM locations WHERE id = $1 AND deleted_at IS NULL`, locationID).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrLocationNotFound
	}
	return title, err
}

func (p pgQueries) LocationShared(ctx context.Context, groupID, locationID uuid.UUID) (bool, error) {
	var shared bool
	err := p.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_locations WHERE group_id = $1 AND location_id = $2)
	`, groupID, locationID).Scan(&shared)
	return shared, err
}

func (p pgQueries) InsertGroupLocation(ctx context.Context, gl *model.GroupLocation) error {
	err := p.q.QueryRow(ctx, `
		INSERT INTO group_locations (id, group_id, location_id, shared_by, notes, is_pinned)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, gl.ID, gl.GroupID, gl.LocationID, gl.SharedBy, gl.Notes, gl.IsPinned).Scan(&gl.CreatedAt)
	if isUniqueViolation(err, "") {
		return ErrAlreadyShared
	}
	if err != nil {
		return fmt.Errorf("sharing location: %w", err)
	}
	return nil
}

func (p pgQueries) ListGroupLocations(ctx context.Context, groupID uuid.UUID) ([]model.GroupLocation, error) {
	rows, err := p.q.Query(ctx, `
		SELECT gl.id, gl.group_id, gl.location_id, gl.shared_by, gl.notes, gl.is_pinned, gl.created_at,
			l.title, l.latitude, l.longitude
		FROM group_locations gl
		JOIN locations l ON l.id = gl.location_id
		WHERE gl.group_id = $1 AND l.deleted_at IS NULL
		ORDER BY gl.is_pinned DESC, gl.created_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying shared locations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GroupLocation, error) {
		var gl model.GroupLocation
		err := row.Scan(&gl.ID, &gl.GroupID, &gl.LocationID, &gl.SharedBy, &gl.Notes, &gl.IsPinned, &gl.CreatedAt,
			&gl.Title, &gl.Latitude, &gl.Longitude)
		return gl, err
	})
}
