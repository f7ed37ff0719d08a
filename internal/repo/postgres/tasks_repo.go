package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// every read joins the users table twice so responses carry the assignee's
// and creator's usernames (never their password hash)
const joinedTaskSelect = `
	SELECT t.id,
		t.title,
		t.description,
		t.status,
		t.priority,
		t.due_date,
		t.user_id,
		t.created_by,
		u.username AS assigned_user_name,
		c.username AS created_by_name,
		t.created_at,
		t.updated_at
	FROM tasks t
	JOIN users u ON t.user_id = u.id
	JOIN users c ON t.created_by = c.id
`

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.DueDate,
		&t.AssigneeID,
		&t.CreatorID,
		&t.AssigneeName,
		&t.CreatorName,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	return t, err
}

func (r *TasksRepo) Create(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error) {
	var id int64

	err := r.observe("tasks.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO tasks (title, description, status, priority, due_date, user_id, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			req.Title, req.Description, req.Status, req.Priority, req.DueDate, req.AssigneeID, creatorID,
		).Scan(&id)
	})

	if err != nil {
		return task.Task{}, err
	}

	// re-read for the joined display names
	return r.GetByID(ctx, id)
}

func (r *TasksRepo) GetByID(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.get_by_id", func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx, joinedTaskSelect+` WHERE t.id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) ListAll(ctx context.Context) ([]task.Task, error) {
	return r.list(ctx, "tasks.list_all", joinedTaskSelect+` ORDER BY t.created_at DESC, t.id DESC`)
}

func (r *TasksRepo) ListByAssignee(ctx context.Context, userID int64) ([]task.Task, error) {
	return r.list(ctx, "tasks.list_by_assignee",
		joinedTaskSelect+` WHERE t.user_id = $1 ORDER BY t.created_at DESC, t.id DESC`, userID)
}

func (r *TasksRepo) ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	return r.list(ctx, "tasks.list_by_status",
		joinedTaskSelect+` WHERE t.status = $1 ORDER BY t.created_at DESC, t.id DESC`, status)
}

func (r *TasksRepo) ListByPriority(ctx context.Context, priority task.Priority) ([]task.Task, error) {
	return r.list(ctx, "tasks.list_by_priority",
		joinedTaskSelect+` WHERE t.priority = $1 ORDER BY t.created_at DESC, t.id DESC`, priority)
}

func (r *TasksRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]task.Task, error) {
	var out []task.Task

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]task.Task, 0)

		for rows.Next() {
			t, err := scanTask(rows)

			if err != nil {
				return err
			}

			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Update applies the effective field set computed by the policy layer. The
// caller has already resolved the existing row, so a miss here means the task
// vanished between the read and the write.
func (r *TasksRepo) Update(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
	var tag pgconn.CommandTag

	err := r.observe("tasks.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE tasks
				SET title = $2,
						description = $3,
						status = $4,
						priority = $5,
						due_date = $6,
						user_id = $7,
						updated_at = NOW()
			WHERE id = $1`,
			id, req.Title, req.Description, req.Status, req.Priority, req.DueDate, req.AssigneeID,
		)
		return err
	})

	if err != nil {
		return task.Task{}, err
	}

	if tag.RowsAffected() == 0 {
		return task.Task{}, task.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *TasksRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.observe("tasks.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}

	return nil
}
