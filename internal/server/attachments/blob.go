// Package attachments stores the documents attached to proposals. The
// Manager validates uploads, names them uniquely and hands the bytes to a
// BlobStore: a local directory or an S3-compatible bucket.
package attachments

import (
	"context"
	"io"
)

// BlobStore is the raw document storage behind the Manager.
//
// Get returns common.ErrorNotFound for an unknown key. Delete of an unknown
// key is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Upload is a document received from a client.
type Upload struct {
	Name string
	Data []byte
}
