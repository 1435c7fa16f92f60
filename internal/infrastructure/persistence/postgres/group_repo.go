package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// GroupRepository implements group.Store on groups and group_members.
type GroupRepository struct {
	conn *Connection
}

// NewGroupRepository creates a group repository.
func NewGroupRepository(conn *Connection) *GroupRepository {
	return &GroupRepository{conn: conn}
}

// Create inserts the group and its creator membership in one transaction.
func (r *GroupRepository) Create(ctx context.Context, g *group.Group) (*group.Group, error) {
	created := g.Clone()
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO groups (name, creator_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
			created.Name, string(created.Creator), created.CreatedAt,
		).Scan(&id); err != nil {
			return err
		}
		created.ID = group.ID(id)
		for _, m := range created.Members {
			if _, err := tx.Exec(ctx,
				`INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)`,
				id, string(m), created.CreatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: create group: %w", err)
	}
	return created, nil
}

// Get loads the group with members in join order.
func (r *GroupRepository) Get(ctx context.Context, id group.ID) (*group.Group, error) {
	pool := r.conn.Pool()

	g := &group.Group{ID: id}
	var creator string
	err := pool.QueryRow(ctx,
		`SELECT name, creator_id, created_at FROM groups WHERE id = $1`, int64(id),
	).Scan(&g.Name, &creator, &g.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGroupNotFound
		}
		return nil, fmt.Errorf("postgres: get group: %w", err)
	}
	g.Creator = shared.UserID(creator)

	rows, err := pool.Query(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY seq`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("postgres: list members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("postgres: scan member: %w", err)
		}
		g.Members = append(g.Members, shared.UserID(m))
	}
	return g, rows.Err()
}

// Exists reports whether the group exists.
func (r *GroupRepository) Exists(ctx context.Context, id group.ID) (bool, error) {
	var exists bool
	if err := r.conn.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, int64(id),
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: group exists: %w", err)
	}
	return exists, nil
}

// IsMember reports whether user belongs to group id.
func (r *GroupRepository) IsMember(ctx context.Context, user shared.UserID, id group.ID) (bool, error) {
	var member bool
	if err := r.conn.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		int64(id), string(user),
	).Scan(&member); err != nil {
		return false, fmt.Errorf("postgres: is member: %w", err)
	}
	return member, nil
}

// AddMember inserts a membership row.
func (r *GroupRepository) AddMember(ctx context.Context, id group.ID, user shared.UserID) error {
	if !user.IsValid() {
		return shared.ErrInvalidUserID
	}
	_, err := r.conn.Pool().Exec(ctx,
		`INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		int64(id), string(user), time.Now().UTC(),
	)
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return shared.ErrGroupNotFound
	case IsUniqueViolation(err):
		return shared.ErrAlreadyMember
	default:
		return fmt.Errorf("postgres: add member: %w", err)
	}
}

// RemoveMember deletes a membership row. The creator cannot leave.
func (r *GroupRepository) RemoveMember(ctx context.Context, id group.ID, user shared.UserID) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var creator string
		err := tx.QueryRow(ctx, `SELECT creator_id FROM groups WHERE id = $1 FOR SHARE`, int64(id)).Scan(&creator)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrGroupNotFound
			}
			return fmt.Errorf("postgres: remove member: %w", err)
		}
		if shared.UserID(creator) == user {
			return shared.ErrNotAuthorized
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, int64(id), string(user))
		if err != nil {
			return fmt.Errorf("postgres: remove member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotMember
		}
		return nil
	})
}

var _ group.Store = (*GroupRepository)(nil)
