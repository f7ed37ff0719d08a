package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/taskhub/internal/domain/account"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *AccountsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const accountColumns = `id, username, email, password_hash, role, created_at, updated_at`

func (r *AccountsRepo) Create(ctx context.Context, username, email, passwordHash string, role account.Role) (account.Account, error) {
	a := account.Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}

	err := r.observe("accounts.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (username, email, password_hash, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`,
			username, email, passwordHash, role,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		return account.Account{}, mapUniqueViolation(err)
	}

	return a, nil
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_by_email", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM users WHERE email = $1`,
			email,
		).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, err
	}
	return a, nil
}

func (r *AccountsRepo) GetByID(ctx context.Context, id int64) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM users WHERE id = $1`,
			id,
		).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, err
	}
	return a, nil
}

func (r *AccountsRepo) List(ctx context.Context) ([]account.Account, error) {
	var out []account.Account

	err := r.observe("accounts.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+accountColumns+` FROM users ORDER BY created_at DESC, id DESC`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]account.Account, 0)

		for rows.Next() {
			var a account.Account

			err = rows.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)

			if err != nil {
				return err
			}

			out = append(out, a)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *AccountsRepo) Update(ctx context.Context, id int64, req account.UpdateAccountRequest) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE users
				SET username = $2,
						email = $3,
						role = $4,
						updated_at = NOW()
			WHERE id = $1
			RETURNING `+accountColumns,
			id, req.Username, req.Email, req.Role,
		).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, mapUniqueViolation(err)
	}

	return a, nil
}

func (r *AccountsRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.observe("accounts.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	// if no rows were deleted the account never existed
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}

	return nil
}

// mapUniqueViolation turns 23505 into the matching taken-field sentinel so
// handlers can answer with a conflict instead of a bare 500.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError

	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return account.ErrEmailTaken
	case strings.Contains(pgErr.ConstraintName, "username"):
		return account.ErrUsernameTaken
	default:
		return err
	}
}
