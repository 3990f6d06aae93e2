package entity

import "time"

// BlobRef addresses one object in the blob store.
type BlobRef struct {
	Bucket string
	Key    string
}

func (r BlobRef) String() string {
	return r.Bucket + "/" + r.Key
}

// BlobInfo is what a HEAD on an object returns.
type BlobInfo struct {
	Size         int64
	ContentType  string
	LastModified *time.Time
}
