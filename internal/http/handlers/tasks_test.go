package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/domain/account"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier satisfies middlewares.TokenVerifier so routes can be mounted
// behind RequireAuth with a canned identity.

type fakeVerifier struct {
	claims *auth.Claims
}

func (f fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) {
	return f.claims, nil
}

func asCaller(id int64, role account.Role) fakeVerifier {
	return fakeVerifier{claims: &auth.Claims{UserID: id, Username: "someone", Role: string(role)}}
}

// Fake repository implementations of the handlers.TasksStore interface

type fakeTasksRepo struct {
	createFn         func(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error)
	getFn            func(ctx context.Context, id int64) (task.Task, error)
	listAllFn        func(ctx context.Context) ([]task.Task, error)
	listByAssigneeFn func(ctx context.Context, userID int64) ([]task.Task, error)
	listByStatusFn   func(ctx context.Context, status task.Status) ([]task.Task, error)
	listByPriorityFn func(ctx context.Context, priority task.Priority) ([]task.Task, error)
	updateFn         func(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error)
	deleteFn         func(ctx context.Context, id int64) error
}

func (f *fakeTasksRepo) Create(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req, creatorID)
	}
	return task.Task{}, nil
}

func (f *fakeTasksRepo) GetByID(ctx context.Context, id int64) (task.Task, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return task.Task{}, nil
}

func (f *fakeTasksRepo) ListAll(ctx context.Context) ([]task.Task, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return []task.Task{}, nil
}

func (f *fakeTasksRepo) ListByAssignee(ctx context.Context, userID int64) ([]task.Task, error) {
	if f.listByAssigneeFn != nil {
		return f.listByAssigneeFn(ctx, userID)
	}
	return []task.Task{}, nil
}

func (f *fakeTasksRepo) ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	if f.listByStatusFn != nil {
		return f.listByStatusFn(ctx, status)
	}
	return []task.Task{}, nil
}

func (f *fakeTasksRepo) ListByPriority(ctx context.Context, priority task.Priority) ([]task.Task, error) {
	if f.listByPriorityFn != nil {
		return f.listByPriorityFn(ctx, priority)
	}
	return []task.Task{}, nil
}

func (f *fakeTasksRepo) Update(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return task.Task{}, nil
}

func (f *fakeTasksRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeAccountGetter struct {
	getFn func(ctx context.Context, id int64) (account.Account, error)
}

func (f *fakeAccountGetter) GetByID(ctx context.Context, id int64) (account.Account, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return account.Account{ID: id, Username: "someone", Role: account.RoleUser}, nil
}

// helper that mounts the task routes behind RequireAuth with a fixed caller

func newTasksRouter(verifier middlewares.TokenVerifier, h *handlers.TasksHandler) *gin.Engine {
	r := gin.New()

	authMW := middlewares.NewAuthMiddleware(verifier)

	tasks := r.Group("/tasks", authMW.RequireAuth())
	tasks.POST("", h.CreateTask)
	tasks.GET("", h.GetTasks)
	tasks.GET("/status/:status", h.GetTasksByStatus)
	tasks.GET("/priority/:priority", h.GetTasksByPriority)
	tasks.GET("/:id", h.GetTaskByID)
	tasks.PUT("/:id", h.UpdateTask)
	tasks.DELETE("/:id", h.DeleteTask)

	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func shipReportTask(assignee int64) task.Task {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	return task.Task{
		ID:           42,
		Title:        "Ship report",
		Description:  "quarterly numbers",
		Status:       task.StatusPending,
		Priority:     task.PriorityHigh,
		DueDate:      &due,
		AssigneeID:   assignee,
		CreatorID:    1,
		AssigneeName: "someone",
		CreatorName:  "admin",
	}
}

func TestCreateTask(t *testing.T) {
	tests := []struct {
		name           string
		verifier       fakeVerifier
		body           string
		accounts       *fakeAccountGetter
		repoSetUp      func(*fakeTasksRepo)
		wantStatusCode int
		wantCreated    bool
	}{
		{
			name:     "admin_assigns_other_user",
			verifier: asCaller(1, account.RoleAdmin),
			body:     `{"title":"Ship report","user_id":7,"priority":"high"}`,
			accounts: &fakeAccountGetter{},
			repoSetUp: func(f *fakeTasksRepo) {
				f.createFn = func(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error) {
					// defaults must be applied before the store call
					if req.Status != task.StatusPending {
						t.Fatalf("status default missing: %q", req.Status)
					}
					if req.Priority != task.PriorityHigh {
						t.Fatalf("priority: got %q, want high", req.Priority)
					}
					if creatorID != 1 {
						t.Fatalf("creator: got %d, want 1", creatorID)
					}
					return shipReportTask(req.AssigneeID), nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantCreated:    true,
		},
		{
			name:           "user_assigns_self",
			verifier:       asCaller(7, account.RoleUser),
			body:           `{"title":"My errand","user_id":7}`,
			accounts:       &fakeAccountGetter{},
			wantStatusCode: http.StatusCreated,
			wantCreated:    true,
		},
		{
			name:           "user_assigns_other_forbidden",
			verifier:       asCaller(7, account.RoleUser),
			body:           `{"title":"Sneaky","user_id":3}`,
			accounts:       &fakeAccountGetter{},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:     "assignee_does_not_exist",
			verifier: asCaller(1, account.RoleAdmin),
			body:     `{"title":"Orphan","user_id":99}`,
			accounts: &fakeAccountGetter{
				getFn: func(ctx context.Context, id int64) (account.Account, error) {
					return account.Account{}, account.ErrNotFound
				},
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_error",
			verifier:       asCaller(1, account.RoleAdmin),
			body:           `{"title":""}`,
			accounts:       &fakeAccountGetter{},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeTasksRepo{}

			created := false

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			if repo.createFn == nil {
				repo.createFn = func(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error) {
					created = true
					return shipReportTask(req.AssigneeID), nil
				}
			} else {
				inner := repo.createFn
				repo.createFn = func(ctx context.Context, req task.CreateTaskRequest, creatorID int64) (task.Task, error) {
					created = true
					return inner(ctx, req, creatorID)
				}
			}

			h := handlers.NewTasksHandler(repo, tt.accounts)
			r := newTasksRouter(tt.verifier, h)

			w := doJSON(r, http.MethodPost, "/tasks", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if created != tt.wantCreated {
				t.Fatalf("created=%v, want %v", created, tt.wantCreated)
			}
		})
	}
}

func TestGetTasksScoping(t *testing.T) {
	repo := &fakeTasksRepo{
		listAllFn: func(ctx context.Context) ([]task.Task, error) {
			t.Fatal("non-admin list must not read all tasks")
			return nil, nil
		},
		listByAssigneeFn: func(ctx context.Context, userID int64) ([]task.Task, error) {
			if userID != 7 {
				t.Fatalf("scoped to user %d, want 7", userID)
			}
			return []task.Task{shipReportTask(7)}, nil
		},
	}

	h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(7, account.RoleUser), h)

	w := doJSON(r, http.MethodGet, "/tasks", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Tasks []task.Task `json:"tasks"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if len(body.Tasks) != 1 || body.Tasks[0].AssigneeID != 7 {
		t.Fatalf("unexpected tasks: %+v", body.Tasks)
	}
}

func TestGetTasksAdminSeesAll(t *testing.T) {
	repo := &fakeTasksRepo{
		listAllFn: func(ctx context.Context) ([]task.Task, error) {
			return []task.Task{shipReportTask(7), shipReportTask(3)}, nil
		},
	}

	h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(1, account.RoleAdmin), h)

	w := doJSON(r, http.MethodGet, "/tasks", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestGetTaskByID(t *testing.T) {
	tests := []struct {
		name           string
		verifier       fakeVerifier
		path           string
		getFn          func(ctx context.Context, id int64) (task.Task, error)
		wantStatusCode int
	}{
		{
			name:     "assignee_reads_own",
			verifier: asCaller(7, account.RoleUser),
			path:     "/tasks/42",
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return shipReportTask(7), nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:     "non_assignee_forbidden",
			verifier: asCaller(3, account.RoleUser),
			path:     "/tasks/42",
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return shipReportTask(7), nil
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			// missing task is 404 for everyone, ownership never enters into it
			name:     "missing_task_not_found_for_user",
			verifier: asCaller(3, account.RoleUser),
			path:     "/tasks/4242",
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return task.Task{}, task.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:     "missing_task_not_found_for_admin",
			verifier: asCaller(1, account.RoleAdmin),
			path:     "/tasks/4242",
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return task.Task{}, task.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "invalid_id",
			verifier:       asCaller(1, account.RoleAdmin),
			path:           "/tasks/abc",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeTasksRepo{getFn: tt.getFn}

			h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
			r := newTasksRouter(tt.verifier, h)

			w := doJSON(r, http.MethodGet, tt.path, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestTaskResponseAlwaysCarriesDescription(t *testing.T) {
	repo := &fakeTasksRepo{
		getFn: func(ctx context.Context, id int64) (task.Task, error) {
			blank := shipReportTask(7)
			blank.Description = ""
			return blank, nil
		},
	}

	h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(7, account.RoleUser), h)

	w := doJSON(r, http.MethodGet, "/tasks/42", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	// an empty description still serializes as an explicit field
	if !strings.Contains(w.Body.String(), `"description":""`) {
		t.Fatalf("description key missing: %s", w.Body.String())
	}
}

func TestUpdateTaskSilentlyKeepsProtectedFields(t *testing.T) {
	existing := shipReportTask(7)

	repo := &fakeTasksRepo{
		getFn: func(ctx context.Context, id int64) (task.Task, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
			// the store must never see the submitted title or due date
			if req.Title != existing.Title {
				t.Fatalf("title reached the store: %q", req.Title)
			}
			if req.DueDate == nil || !req.DueDate.Equal(*existing.DueDate) {
				t.Fatalf("due date reached the store: %v", req.DueDate)
			}

			updated := existing
			updated.Status = req.Status
			return updated, nil
		},
	}

	h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(7, account.RoleUser), h)

	w := doJSON(r, http.MethodPut, "/tasks/42", `{"title":"Hacked","status":"completed","due_date":"2030-01-01T00:00:00Z"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Task task.Task `json:"task"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if body.Task.Title != "Ship report" {
		t.Fatalf("title: got %q, want unchanged", body.Task.Title)
	}

	if body.Task.Status != task.StatusCompleted {
		t.Fatalf("status: got %q, want completed", body.Task.Status)
	}
}

func TestUpdateTaskDenials(t *testing.T) {
	tests := []struct {
		name           string
		verifier       fakeVerifier
		body           string
		getFn          func(ctx context.Context, id int64) (task.Task, error)
		wantStatusCode int
	}{
		{
			name:     "non_assignee_forbidden",
			verifier: asCaller(3, account.RoleUser),
			body:     `{"title":"x","status":"completed"}`,
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return shipReportTask(7), nil
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:     "user_reassign_to_other_forbidden",
			verifier: asCaller(7, account.RoleUser),
			body:     `{"title":"x","user_id":3}`,
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return shipReportTask(7), nil
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:     "missing_task_not_found",
			verifier: asCaller(1, account.RoleAdmin),
			body:     `{"title":"x"}`,
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return task.Task{}, task.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeTasksRepo{
				getFn: tt.getFn,
				updateFn: func(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
					t.Fatal("update must not reach the store")
					return task.Task{}, nil
				},
			}

			h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
			r := newTasksRouter(tt.verifier, h)

			w := doJSON(r, http.MethodPut, "/tasks/42", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteTask(t *testing.T) {
	tests := []struct {
		name           string
		verifier       fakeVerifier
		getFn          func(ctx context.Context, id int64) (task.Task, error)
		wantStatusCode int
		wantDeleted    bool
	}{
		{
			name:           "admin_deletes",
			verifier:       asCaller(1, account.RoleAdmin),
			wantStatusCode: http.StatusOK,
			wantDeleted:    true,
		},
		{
			// even the task's own assignee may not delete it
			name:           "assignee_forbidden",
			verifier:       asCaller(7, account.RoleUser),
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:     "missing_task_not_found",
			verifier: asCaller(7, account.RoleUser),
			getFn: func(ctx context.Context, id int64) (task.Task, error) {
				return task.Task{}, task.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			deleted := false

			repo := &fakeTasksRepo{
				getFn: tt.getFn,
				deleteFn: func(ctx context.Context, id int64) error {
					deleted = true
					return nil
				},
			}

			if repo.getFn == nil {
				repo.getFn = func(ctx context.Context, id int64) (task.Task, error) {
					return shipReportTask(7), nil
				}
			}

			h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
			r := newTasksRouter(tt.verifier, h)

			w := doJSON(r, http.MethodDelete, "/tasks/42", "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if deleted != tt.wantDeleted {
				t.Fatalf("deleted=%v, want %v", deleted, tt.wantDeleted)
			}
		})
	}
}

func TestGetTasksByStatusUserFiltersOwn(t *testing.T) {
	own := []task.Task{shipReportTask(7), shipReportTask(7)}
	own[1].ID = 43
	own[1].Status = task.StatusCompleted

	repo := &fakeTasksRepo{
		listByStatusFn: func(ctx context.Context, status task.Status) ([]task.Task, error) {
			t.Fatal("non-admin must not use the server-side status filter")
			return nil, nil
		},
		listByAssigneeFn: func(ctx context.Context, userID int64) ([]task.Task, error) {
			return own, nil
		},
	}

	h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(7, account.RoleUser), h)

	w := doJSON(r, http.MethodGet, "/tasks/status/completed", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Tasks []task.Task `json:"tasks"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if len(body.Tasks) != 1 || body.Tasks[0].ID != 43 {
		t.Fatalf("unexpected tasks: %+v", body.Tasks)
	}
}

func TestGetTasksByStatusRejectsUnknownStatus(t *testing.T) {
	h := handlers.NewTasksHandler(&fakeTasksRepo{}, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(1, account.RoleAdmin), h)

	w := doJSON(r, http.MethodGet, "/tasks/status/bogus", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestGetTasksByPriorityAdminUsesServerFilter(t *testing.T) {
	repo := &fakeTasksRepo{
		listByPriorityFn: func(ctx context.Context, priority task.Priority) ([]task.Task, error) {
			if priority != task.PriorityHigh {
				t.Fatalf("priority: got %q, want high", priority)
			}
			return []task.Task{shipReportTask(7)}, nil
		},
	}

	h := handlers.NewTasksHandler(repo, &fakeAccountGetter{})
	r := newTasksRouter(asCaller(1, account.RoleAdmin), h)

	w := doJSON(r, http.MethodGet, "/tasks/priority/high", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}
