package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/taskdeck/apiserver/internal/storage"
	"github.com/taskdeck/apiserver/types"
)

// ErrEmptyFilename is returned when an upload carries no usable filename.
var ErrEmptyFilename = errors.New("filename must not be empty")

// AttachmentRepository defines persistence operations for attachment metadata.
type AttachmentRepository interface {
	ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error)
	Get(ctx context.Context, id, taskID int) (types.Attachment, error)
	Upsert(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	Delete(ctx context.Context, id, taskID int) error
}

// AttachmentService stores attachment bytes in the object store and their
// metadata in the database. Callers must have resolved the task through an
// owner-scoped lookup before touching attachments.
type AttachmentService struct {
	repo    AttachmentRepository
	storage *storage.Storage
}

func NewAttachmentService(repo AttachmentRepository, st *storage.Storage) *AttachmentService {
	return &AttachmentService{repo: repo, storage: st}
}

func (s *AttachmentService) List(ctx context.Context, taskID int) ([]types.Attachment, error) {
	return s.repo.ListByTask(ctx, taskID)
}

// Upload writes the object first, then records metadata. A same-name upload
// replaces the previous object under the same key.
func (s *AttachmentService) Upload(ctx context.Context, taskID int, filename, contentType string, r io.Reader, size int64) (types.Attachment, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return types.Attachment{}, ErrEmptyFilename
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(taskID, filename)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Attachment{}, err
	}

	attachment, err := s.repo.Upsert(ctx, types.Attachment{
		TaskID:      taskID,
		Filename:    filename,
		Size:        size,
		ContentType: contentType,
		ObjectKey:   key,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return types.Attachment{}, err
	}
	return attachment, nil
}

// Open returns the attachment metadata and a reader over its bytes.
// The caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, id, taskID int) (types.Attachment, io.ReadCloser, error) {
	attachment, err := s.repo.Get(ctx, id, taskID)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	reader, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return attachment, reader, nil
}

// Delete removes the metadata row and then the object. A missing object is
// not an error; the row is the source of truth.
func (s *AttachmentService) Delete(ctx context.Context, id, taskID int) error {
	attachment, err := s.repo.Get(ctx, id, taskID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, taskID); err != nil {
		return err
	}
	_ = s.storage.Delete(ctx, attachment.ObjectKey)
	return nil
}

func objectKey(taskID int, filename string) string {
	return fmt.Sprintf("tasks/%d/%s", taskID, filename)
}
