// Package storage abstracts the remote media store that holds uploaded
// video files and images.
package storage

import "context"

// Kind names the class of media an object belongs to. It selects the key
// prefix and the validation rules applied upstream.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Asset describes a successfully stored remote object.
type Asset struct {
	URL      string
	PublicID string
	Kind     Kind
	// Duration is the media duration in seconds when the store can report
	// one; zero otherwise.
	Duration float64
}

// MediaStore persists media files remotely. Upload reads the staged file at
// localPath; Delete removes a previously uploaded object by its public id.
type MediaStore interface {
	Upload(ctx context.Context, localPath string, kind Kind) (Asset, error)
	Delete(ctx context.Context, publicID string, kind Kind) error
}
