package model

// Blob represents a binary attachment fetched from /blob/{threadID}/{blobID}.
// Blobs are fetched lazily, only when the export configuration requests
// embedded or linked images.
type Blob struct {
	// ThreadID is the owning thread. A blob is identified by the
	// (ThreadID, ID) pair, not by ID alone.
	ThreadID string

	// ID is the blob identifier within the thread.
	ID string

	// Data is the binary payload.
	Data []byte

	// FileName is the target file name used when the blob is written
	// alongside the exported document.
	FileName string
}
