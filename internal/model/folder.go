package model

// Folder represents a Quip folder together with its child references.
// The structure mirrors the /folders/{id} API response.
//
// A folder is created on first fetch during the analysis phase and is
// immutable afterwards. Parent linkage is carried as a title path only,
// never as an owning pointer, because the folder graph is not a tree:
// the same folder can be reachable through several parents.
type Folder struct {
	// Info holds the folder metadata.
	Info FolderInfo `json:"folder"`

	// MemberIDs lists the user IDs with access to the folder.
	MemberIDs []string `json:"member_ids,omitempty"`

	// Children holds the ordered child references. Each entry points at
	// either a sub-folder or a thread, never both.
	Children []ChildRef `json:"children"`

	// Path is the slash-free list of folder titles from the crawl root to
	// this folder, including the folder's own title. It is assigned by the
	// crawler when the folder is first discovered and is used to build the
	// output directory structure.
	Path []string `json:"-"`
}

// FolderInfo holds the metadata portion of a folder response.
type FolderInfo struct {
	// ID is the opaque folder identifier.
	ID string `json:"id"`

	// Title is the display title of the folder.
	Title string `json:"title"`

	// FolderType distinguishes private, shared, and group folders.
	FolderType string `json:"folder_type,omitempty"`

	// UpdatedUsec is the last modification time in microseconds since epoch.
	UpdatedUsec int64 `json:"updated_usec,omitempty"`
}

// ChildRef is a reference from a folder to one of its children.
// Exactly one of FolderID and ThreadID is set.
type ChildRef struct {
	// FolderID is set when the child is a sub-folder.
	FolderID string `json:"folder_id,omitempty"`

	// ThreadID is set when the child is a thread.
	ThreadID string `json:"thread_id,omitempty"`

	// Restricted indicates the current token cannot access the child.
	// Restricted children are skipped during analysis.
	Restricted bool `json:"restricted,omitempty"`
}

// IsFolder reports whether the reference points at a sub-folder.
func (c ChildRef) IsFolder() bool {
	return c.FolderID != ""
}

// IsThread reports whether the reference points at a thread.
func (c ChildRef) IsThread() bool {
	return c.ThreadID != ""
}
