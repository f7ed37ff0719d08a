package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/account"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/policy"
	"github.com/gin-gonic/gin"
)

type TasksStore interface {
	Create(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error)
	GetByID(ctx context.Context, id int64) (task.Task, error)
	ListAll(ctx context.Context) ([]task.Task, error)
	ListByAssignee(ctx context.Context, userID int64) ([]task.Task, error)
	ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error)
	ListByPriority(ctx context.Context, priority task.Priority) ([]task.Task, error)
	Update(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, id int64) error
}

type AccountGetter interface {
	GetByID(ctx context.Context, id int64) (account.Account, error)
}

type TasksHandler struct {
	repo     TasksStore
	accounts AccountGetter
}

func NewTasksHandler(repo TasksStore, accounts AccountGetter) *TasksHandler {
	return &TasksHandler{repo: repo, accounts: accounts}
}

func callerOrAbort(ctx *gin.Context) (policy.Caller, bool) {
	caller, ok := middlewares.CallerFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return policy.Caller{}, false
	}

	return caller, true
}

func parseID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)

	if err != nil || id < 1 {
		RespondBadRequest(ctx, "Invalid id")
		return 0, false
	}

	return id, true
}

func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)

	if !ok {
		return
	}

	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	req.ApplyDefaults()

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	// the assignee must be a real account; a dangling id is invalid input,
	// not a denial
	if _, err := h.accounts.GetByID(cctx, req.AssigneeID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			RespondBadRequest(ctx, "Assigned user not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	if err := policy.CanCreateTask(caller, req.AssigneeID); err != nil {
		RespondForbidden(ctx, err.Error())
		return
	}

	t, err := h.repo.Create(cctx, req, caller.ID)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    t,
	})
}

func (h *TasksHandler) GetTasks(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	var (
		tasks []task.Task
		err   error
	)

	if policy.ScopeToCaller(caller) {
		tasks, err = h.repo.ListByAssignee(cctx, caller.ID)
	} else {
		tasks, err = h.repo.ListAll(cctx)
	}

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TasksHandler) GetTaskByID(ctx *gin.Context) {
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

	// existence before ownership: a missing id is 404 for everyone
	t, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	if err := policy.CanReadTask(caller, t); err != nil {
		RespondForbidden(ctx, "Access denied")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": t})
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)

	if !ok {
		return
	}

	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	var req task.UpdateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	eff, err := policy.EffectiveUpdate(caller, existing, req)

	if err != nil {
		RespondForbidden(ctx, err.Error())
		return
	}

	// an admin reassignment must land on a real account
	if eff.AssigneeID != existing.AssigneeID {
		if _, err := h.accounts.GetByID(cctx, eff.AssigneeID); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				RespondBadRequest(ctx, "Assigned user not found")
				return
			}
			RespondInternal(ctx)
			return
		}
	}

	updated, err := h.repo.Update(cctx, id, eff)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Task updated successfully",
		"task":    updated,
	})
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
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
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	if err := policy.CanDeleteTask(caller); err != nil {
		RespondForbidden(ctx, err.Error())
		return
	}

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// GetTasksByStatus returns the same result set as listing then filtering:
// admins filter server-side over all tasks, regular users filter their own.
func (h *TasksHandler) GetTasksByStatus(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)

	if !ok {
		return
	}

	status := task.Status(ctx.Param("status"))

	if !status.Valid() {
		RespondBadRequest(ctx, "Status must be pending, in_progress, or completed")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	if !policy.ScopeToCaller(caller) {
		tasks, err := h.repo.ListByStatus(cctx, status)

		if err != nil {
			RespondInternal(ctx)
			return
		}

		ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
		return
	}

	own, err := h.repo.ListByAssignee(cctx, caller.ID)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	tasks := make([]task.Task, 0, len(own))

	for _, t := range own {
		if t.Status == status {
			tasks = append(tasks, t)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TasksHandler) GetTasksByPriority(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)

	if !ok {
		return
	}

	priority := task.Priority(ctx.Param("priority"))

	if !priority.Valid() {
		RespondBadRequest(ctx, "Priority must be low, medium, or high")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	if !policy.ScopeToCaller(caller) {
		tasks, err := h.repo.ListByPriority(cctx, priority)

		if err != nil {
			RespondInternal(ctx)
			return
		}

		ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
		return
	}

	own, err := h.repo.ListByAssignee(cctx, caller.ID)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	tasks := make([]task.Task, 0, len(own))

	for _, t := range own {
		if t.Priority == priority {
			tasks = append(tasks, t)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
