package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

var _ Repo = (*PsqlRepo)(nil)
var _ Repo = (*mockRepo)(nil)

type Repo interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Delete(ctx context.Context, id int) error
}

type PsqlRepo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{
		db: db,
	}
}

func (r *PsqlRepo) Create(ctx context.Context, user *User) (*User, error) {
	if user.Username == "" || user.PasswordHash == "" {
		return nil, errors.New("user username or password hash empty")
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO lms_user (username, password_hash, email, role, created_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		user.Username, user.PasswordHash, user.Email, user.Role, user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	user.ID = id
	return user, nil
}

func (r *PsqlRepo) GetByID(ctx context.Context, id int) (*User, error) {
	return r.getByField(ctx, "id", id)
}

func (r *PsqlRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getByField(ctx, "username", username)
}

func (r *PsqlRepo) getByField(ctx context.Context, field string, value any) (*User, error) {
	rows, err := r.db.Query(
		ctx,
		fmt.Sprintf(
			`SELECT id, username, password_hash, email, role, created_at
				FROM lms_user WHERE %s = $1;`, field,
		),
		value,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrUserNotFound
	}

	var user User
	if err := rows.Scan(
		&user.ID, &user.Username, &user.PasswordHash,
		&user.Email, &user.Role, &user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes the user; courses referencing it as instructor go down
// with it via the FK cascade
func (r *PsqlRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM lms_user WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
