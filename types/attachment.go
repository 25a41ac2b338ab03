package types

import "time"

// Attachment is the metadata record for a file uploaded to a task.
// The bytes themselves live in the configured object store under ObjectKey.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID int `json:"id" db:"id"`

	// TaskID identifies the task the attachment belongs to.
	TaskID int `json:"taskId" db:"task_id"`

	// Filename is the client-supplied name. Unique per task; uploading
	// the same name again replaces the previous object.
	Filename string `json:"filename" db:"filename"`

	// Size is the object size in bytes.
	Size int64 `json:"size" db:"size"`

	// ContentType is the MIME type recorded at upload time.
	ContentType string `json:"contentType" db:"content_type"`

	// ObjectKey locates the object in the store. Not exposed to clients.
	ObjectKey string `json:"-" db:"object_key"`

	// CreatedAt is the timestamp when the attachment was uploaded.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
