package types

import "time"

// Task represents a single to-do item belonging to one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Title is the task text. Stored trimmed and never empty.
	Title string `json:"title" db:"title"`

	// Completed reports whether the task has been finished.
	Completed bool `json:"completed" db:"completed"`

	// OwnerID identifies the user the task belongs to.
	// Immutable after creation; always set from the authenticated
	// identity, never from client input.
	OwnerID int `json:"ownerId" db:"owner_id"`

	// CreatedAt is the timestamp when the task was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TaskUpdate is a partial update to a task. Nil fields are left unchanged.
type TaskUpdate struct {
	Title     *string
	Completed *bool
}

// Empty reports whether the update carries no fields at all.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Completed == nil
}
