package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taskdeck/apiserver/internal/events"
	"github.com/taskdeck/apiserver/internal/services"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

// TaskHandler provides HTTP handlers for a user's tasks.
type TaskHandler struct {
	taskService       *services.TaskService
	attachmentService *services.AttachmentService
	publisher         *events.Publisher
}

// NewTaskHandler constructs a handler with the provided services.
// attachmentService may be nil when no object storage is configured.
func NewTaskHandler(taskService *services.TaskService, attachmentService *services.AttachmentService, publisher *events.Publisher) *TaskHandler {
	return &TaskHandler{
		taskService:       taskService,
		attachmentService: attachmentService,
		publisher:         publisher,
	}
}

// TaskRouter registers task routes on the given router. All routes require
// authentication; every lookup is scoped to the authenticated owner.
func TaskRouter(r chi.Router, handler *TaskHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Patch("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
		if handler.attachmentService != nil {
			r.Route("/attachments", func(r chi.Router) {
				r.Get("/", handler.ListAttachments)
				r.Post("/", handler.UploadAttachment)
				r.Get("/{attachmentID}", handler.DownloadAttachment)
				r.Delete("/{attachmentID}", handler.DeleteAttachment)
			})
		}
	})
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	tasks, err := h.taskService.List(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	// The request type carries only the title, so a client-supplied owner
	// field is silently ignored; ownership always comes from the token.
	var req TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.taskService.Create(r.Context(), identity.UserID, req.Title)
	if err != nil {
		if errors.Is(err, services.ErrEmptyTitle) {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.publisher.Emit(events.Event{Kind: events.KindTaskCreated, UserID: identity.UserID, TaskID: task.ID})
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), id, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	var req TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	update := types.TaskUpdate{Title: req.Title, Completed: req.Completed}
	task, err := h.taskService.Update(r.Context(), id, identity.UserID, update)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoFields):
			writeError(w, http.StatusBadRequest, "no fields to update")
		case errors.Is(err, services.ErrEmptyTitle):
			writeError(w, http.StatusBadRequest, "title must not be empty")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "task not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update task")
		}
		return
	}

	kind := events.KindTaskUpdated
	if req.Completed != nil && task.Completed {
		kind = events.KindTaskCompleted
	}
	h.publisher.Emit(events.Event{Kind: kind, UserID: identity.UserID, TaskID: task.ID})
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.publisher.Emit(events.Event{Kind: events.KindTaskDeleted, UserID: identity.UserID, TaskID: id})
	w.WriteHeader(http.StatusNoContent)
}

type TaskCreateRequest struct {
	Title string `json:"title"`
}

type TaskUpdateRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

// taskRequest resolves the authenticated identity and the task id from the
// URL, writing the error response itself when either is missing.
func (h *TaskHandler) taskRequest(w http.ResponseWriter, r *http.Request) (Identity, int, bool) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return Identity{}, 0, false
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return Identity{}, 0, false
	}
	return identity, id, true
}

func parseTaskID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "taskID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid task id")
	}
	return id, nil
}
