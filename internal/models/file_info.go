package models

import "time"

// Blob is an image held in memory behind a preview reference.
type Blob struct {
	ID          string    `json:"id" msgpack:"id"`
	Owner       string    `json:"owner" msgpack:"owner"` // session that created it
	Name        string    `json:"name" msgpack:"name"`
	ContentType string    `json:"contentType" msgpack:"contentType"`
	Size        int64     `json:"size" msgpack:"size"`
	CreatedAt   time.Time `json:"createdAt" msgpack:"createdAt"`
	Data        []byte    `json:"-" msgpack:"-"`
}

// Ref returns the preview reference of the blob.
func (b *Blob) Ref() ImageRef {
	return ImageRef(b.ID)
}

// SelectedFile is a file picked or dropped by the user for one stage.
// It lives only in memory and is replaced wholesale on new selection.
type SelectedFile struct {
	Name        string   `json:"name" msgpack:"name"`
	ContentType string   `json:"contentType" msgpack:"contentType"`
	Size        int64    `json:"size" msgpack:"size"`
	Preview     ImageRef `json:"preview" msgpack:"preview"`
	Data        []byte   `json:"-" msgpack:"-"`
}
