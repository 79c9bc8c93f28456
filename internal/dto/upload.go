package dto

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"

	"MediaVault/internal/apperr"
	"MediaVault/model"

	"gorm.io/gorm"
)

// UploadFile is one file offered to ingestion. Open may be called more than once.
type UploadFile struct {
	Name         string
	ContentType  string
	DeclaredSize int64
	Open         func() (io.ReadSeekCloser, error)
}

// IngestOptions controls batch semantics.
type IngestOptions struct {
	// AllOrNothing fails the whole batch when any file is rejected.
	AllOrNothing bool
	// OnCommit runs inside the transaction that inserts the assets; an error rolls the batch back.
	OnCommit func(tx *gorm.DB, assets []*model.Asset) error
}

// IngestResult is the outcome of a committed batch.
type IngestResult struct {
	Assets   []model.Asset      `json:"assets"`
	Rejected []apperr.FileError `json:"rejected,omitempty"`
	Bytes    uint64             `json:"bytes"`
}

// FromMultipart adapts a multipart upload part.
func FromMultipart(fh *multipart.FileHeader) *UploadFile {
	return &UploadFile{
		Name:         fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		DeclaredSize: fh.Size,
		Open: func() (io.ReadSeekCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes wraps in-memory content.
func FromBytes(name, contentType string, data []byte) *UploadFile {
	return &UploadFile{
		Name:         name,
		ContentType:  contentType,
		DeclaredSize: int64(len(data)),
		Open: func() (io.ReadSeekCloser, error) {
			return nopSeekCloser{bytes.NewReader(data)}, nil
		},
	}
}

// FromFile wraps a file on disk.
func FromFile(name, contentType, path string, size int64) *UploadFile {
	return &UploadFile{
		Name:         name,
		ContentType:  contentType,
		DeclaredSize: size,
		Open: func() (io.ReadSeekCloser, error) {
			return os.Open(path)
		},
	}
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
