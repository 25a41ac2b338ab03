package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskdeck/apiserver/types"
)

// AttachmentRepository handles persistence for attachment metadata.
// Ownership is not checked here; callers resolve the task through
// TaskRepository.GetOwned first.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error) {
	const query = `
		SELECT id, task_id, filename, size, content_type, object_key, created_at
		FROM task_attachments
		WHERE task_id = $1
		ORDER BY filename`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		var attachment types.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TaskID,
			&attachment.Filename,
			&attachment.Size,
			&attachment.ContentType,
			&attachment.ObjectKey,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *AttachmentRepository) Get(ctx context.Context, id, taskID int) (types.Attachment, error) {
	const query = `
		SELECT id, task_id, filename, size, content_type, object_key, created_at
		FROM task_attachments
		WHERE id = $1 AND task_id = $2`
	var attachment types.Attachment
	err := r.db.QueryRowContext(ctx, query, id, taskID).Scan(
		&attachment.ID,
		&attachment.TaskID,
		&attachment.Filename,
		&attachment.Size,
		&attachment.ContentType,
		&attachment.ObjectKey,
		&attachment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

// Upsert inserts the metadata row, replacing any previous attachment with
// the same filename on the same task.
func (r *AttachmentRepository) Upsert(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO task_attachments (task_id, filename, size, content_type, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, filename) DO UPDATE
		SET size = EXCLUDED.size,
			content_type = EXCLUDED.content_type,
			object_key = EXCLUDED.object_key,
			created_at = EXCLUDED.created_at
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.TaskID,
		attachment.Filename,
		attachment.Size,
		attachment.ContentType,
		attachment.ObjectKey,
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id, taskID int) error {
	const query = `DELETE FROM task_attachments WHERE id = $1 AND task_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, taskID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
