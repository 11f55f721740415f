package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCourseNotFound = errors.New("course not found")

var _ Repo = (*PsqlRepo)(nil)
var _ Repo = (*mockRepo)(nil)

type Repo interface {
	List(ctx context.Context) ([]Course, error)
	Create(ctx context.Context, course *Course) (*Course, error)
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

func (r *PsqlRepo) List(ctx context.Context) ([]Course, error) {
	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				c.id, c.title, c.description, c.instructor_id,
				u.username, c.created_at, c.updated_at
			FROM course c
			JOIN lms_user u ON u.id = c.instructor_id
			ORDER BY c.id;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var course Course
		if err := rows.Scan(
			&course.ID, &course.Title, &course.Description, &course.InstructorID,
			&course.InstructorName, &course.CreatedAt, &course.UpdatedAt,
		); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return courses, nil
}

func (r *PsqlRepo) Create(ctx context.Context, course *Course) (*Course, error) {
	if course.Title == "" {
		return nil, errors.New("course title empty")
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO course (title, description, instructor_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		course.Title, course.Description, course.InstructorID,
		course.CreatedAt, course.UpdatedAt,
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

	course.ID = id
	return course, nil
}

func (r *PsqlRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM course WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}
