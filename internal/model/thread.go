package model

import "time"

// Thread type values returned by the Quip API.
const (
	// ThreadTypeDocument marks a regular document thread.
	ThreadTypeDocument = "document"

	// ThreadTypeSpreadsheet marks a spreadsheet thread.
	ThreadTypeSpreadsheet = "spreadsheet"

	// ThreadTypeChannel marks a chat channel. Channels have no document
	// body and are skipped during export.
	ThreadTypeChannel = "channel"
)

// Thread represents a full thread response from /threads/{id}.
// It is created on first fetch during the export phase. The only mutation
// applied afterwards is the optional post-export lock and title update,
// which happens on the server, not on this value.
type Thread struct {
	// Info holds the thread metadata.
	Info ThreadInfo `json:"thread"`

	// HTML is the document body as Quip HTML markup. Empty for threads
	// fetched through the batched metadata endpoint.
	HTML string `json:"html,omitempty"`

	// UserIDs lists the members of the thread.
	UserIDs []string `json:"user_ids,omitempty"`
}

// ThreadInfo holds the metadata portion of a thread response.
type ThreadInfo struct {
	// ID is the opaque thread identifier.
	ID string `json:"id"`

	// Title is the document title.
	Title string `json:"title"`

	// Type is one of the ThreadType constants.
	Type string `json:"type"`

	// Link is the canonical URL of the thread.
	Link string `json:"link,omitempty"`

	// UpdatedUsec is the last modification time in microseconds since epoch.
	// Used by the resume manifest to detect unchanged threads.
	UpdatedUsec int64 `json:"updated_usec,omitempty"`
}

// IsSpreadsheet reports whether the thread is a spreadsheet.
func (t ThreadInfo) IsSpreadsheet() bool {
	return t.Type == ThreadTypeSpreadsheet
}

// ThreadStub is the minimal thread record collected during analysis.
// It carries just enough information to drive the export phase: the title
// for the output file name, the owning folder path for the directory
// structure, and the type for format resolution.
type ThreadStub struct {
	// ID is the opaque thread identifier.
	ID string

	// Title is the document title. May be empty if the batched metadata
	// fetch for this thread failed; the exporter falls back to the full
	// thread fetch in that case.
	Title string

	// Type is one of the ThreadType constants.
	Type string

	// Path is the folder title path from the crawl root to the folder the
	// thread was first discovered under. When a thread is reachable under
	// several folders, the first discovered path wins.
	Path []string

	// UpdatedUsec is the last modification time in microseconds since epoch.
	UpdatedUsec int64
}

// Message represents a single comment message from /messages/{threadID}.
type Message struct {
	// ID is the opaque message identifier.
	ID string `json:"id"`

	// AuthorName is the display name of the message author.
	AuthorName string `json:"author_name"`

	// Text is the plain-text message body.
	Text string `json:"text"`

	// CreatedUsec is the creation time in microseconds since epoch.
	CreatedUsec int64 `json:"created_usec"`
}

// CreatedTime returns the message creation time.
func (m Message) CreatedTime() time.Time {
	return time.UnixMicro(m.CreatedUsec)
}

// User represents the relevant fields of a /users/current response.
// The folder IDs seed the crawl when the operator does not pass an
// explicit folder list.
type User struct {
	// ID is the opaque user identifier.
	ID string `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`

	// DesktopFolderID is the user's desktop folder.
	DesktopFolderID string `json:"desktop_folder_id,omitempty"`

	// PrivateFolderID is the user's private folder.
	PrivateFolderID string `json:"private_folder_id,omitempty"`

	// SharedFolderIDs lists folders shared with the user.
	SharedFolderIDs []string `json:"shared_folder_ids,omitempty"`

	// GroupFolderIDs lists group folders the user belongs to.
	GroupFolderIDs []string `json:"group_folder_ids,omitempty"`
}

// RootFolderIDs returns the default crawl seeds for the user, in a stable
// order with empty entries removed.
func (u User) RootFolderIDs() []string {
	ids := make([]string, 0, 2+len(u.SharedFolderIDs)+len(u.GroupFolderIDs))
	if u.DesktopFolderID != "" {
		ids = append(ids, u.DesktopFolderID)
	}
	if u.PrivateFolderID != "" {
		ids = append(ids, u.PrivateFolderID)
	}
	ids = append(ids, u.SharedFolderIDs...)
	ids = append(ids, u.GroupFolderIDs...)
	return ids
}
