package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/account"
	"github.com/geocoder89/taskhub/internal/policy"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type AccountsStore interface {
	GetByID(ctx context.Context, id int64) (account.Account, error)
	List(ctx context.Context) ([]account.Account, error)
	Update(ctx context.Context, id int64, req account.UpdateAccountRequest) (account.Account, error)
	Delete(ctx context.Context, id int64) error
}

type SessionRevoker interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID int64) error
}

// UsersHandler sits behind the RequireAdmin middleware; the self-delete rule
// is the only policy decision that still happens in here.
type UsersHandler struct {
	repo     AccountsStore
	sessions SessionRevoker
}

func NewUsersHandler(repo AccountsStore, sessions SessionRevoker) *UsersHandler {
	return &UsersHandler{repo: repo, sessions: sessions}
}

func (h *UsersHandler) GetUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	users, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	u, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	var req account.UpdateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	u, err := h.repo.Update(cctx, id, req)

	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, account.ErrEmailTaken):
			RespondConflict(ctx, "Email is already in use")
		case errors.Is(err, account.ErrUsernameTaken):
			RespondConflict(ctx, "Username is already in use")
		default:
			RespondInternal(ctx)
		}
		return
	}

	// a role change must stop minting tokens with the old role, so every
	// outstanding refresh token is revoked; issued access tokens still ride
	// out their TTL
	if existing.Role != u.Role {
		if err := h.revokeSessions(cctx, id); err != nil {
			RespondInternal(ctx)
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    u,
	})
}

func (h *UsersHandler) revokeSessions(ctx context.Context, userID int64) error {
	tx, err := h.sessions.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.sessions.RevokeAllForUser(ctx, tx, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)

	if !ok {
		return
	}

	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	if _, err := h.repo.GetByID(cctx, id); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	// nobody may delete the account they are logged in as, admins included
	if err := policy.CanDeleteAccount(caller, id); err != nil {
		if errors.Is(err, policy.ErrSelfDelete) {
			RespondBadRequest(ctx, "Cannot delete your own account")
			return
		}
		RespondForbidden(ctx, "Access denied")
		return
	}

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
