package services

import (
	"context"
	"errors"
	"strings"

	"github.com/taskdeck/apiserver/types"
)

// ErrEmptyTitle is returned when a task title is empty after trimming.
var ErrEmptyTitle = errors.New("title must not be empty")

// ErrNoFields is returned when a partial update carries no fields.
var ErrNoFields = errors.New("no fields to update")

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	ListByOwner(ctx context.Context, ownerID int) ([]types.Task, error)
	GetOwned(ctx context.Context, id, ownerID int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	UpdateOwned(ctx context.Context, id, ownerID int, update types.TaskUpdate) (types.Task, error)
	DeleteOwned(ctx context.Context, id, ownerID int) error
}

// TaskService encapsulates task use-cases. All operations are scoped to a
// single owner; a task the owner cannot see does not exist as far as this
// service is concerned.
type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) List(ctx context.Context, ownerID int) ([]types.Task, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *TaskService) Get(ctx context.Context, id, ownerID int) (types.Task, error) {
	return s.repo.GetOwned(ctx, id, ownerID)
}

// Create stores a new task for ownerID. The owner always comes from the
// authenticated identity, never from client input.
func (s *TaskService) Create(ctx context.Context, ownerID int, title string) (types.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Task{}, ErrEmptyTitle
	}
	return s.repo.Create(ctx, types.Task{
		Title:   title,
		OwnerID: ownerID,
	})
}

// Update applies a partial update. At least one field must be present, and
// a supplied title must be non-empty after trimming.
func (s *TaskService) Update(ctx context.Context, id, ownerID int, update types.TaskUpdate) (types.Task, error) {
	if update.Empty() {
		return types.Task{}, ErrNoFields
	}
	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return types.Task{}, ErrEmptyTitle
		}
		update.Title = &trimmed
	}
	return s.repo.UpdateOwned(ctx, id, ownerID, update)
}

func (s *TaskService) Delete(ctx context.Context, id, ownerID int) error {
	return s.repo.DeleteOwned(ctx, id, ownerID)
}
