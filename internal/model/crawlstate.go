package model

import "sync"

// CrawlState is the in-memory inventory built during the analysis phase.
// It records every discovered folder and thread exactly once and carries
// the running totals reported through the progress callback.
//
// Invariant: each folder ID and thread ID appears at most once, even when
// the item is reachable through several parents. The folder graph is not a
// tree; shared folders and threads are common and must not be double-counted
// or double-exported.
//
// Design decision: all additions go through Mark/Add methods that report
// whether the ID was new. Concurrent callers racing on the same ID observe
// exactly one winner, so the crawler can fan out folder fetches without
// further coordination.
type CrawlState struct {
	mu sync.Mutex

	// seenFolders records folder IDs that have been claimed for fetching,
	// including folders whose fetch later failed. Claiming before fetching
	// guarantees a shared folder is requested exactly once.
	seenFolders map[string]bool

	folders map[string]*Folder
	threads map[string]*ThreadStub
	order   []string

	foldersTotal int
	threadsTotal int
}

// NewCrawlState creates an empty CrawlState.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		seenFolders: make(map[string]bool),
		folders:     make(map[string]*Folder),
		threads:     make(map[string]*ThreadStub),
	}
}

// ClaimFolder marks a folder ID as scheduled for fetching.
// It returns true if the ID was not claimed before. Callers must only
// fetch and expand a folder after a successful claim.
func (s *CrawlState) ClaimFolder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenFolders[id] {
		return false
	}
	s.seenFolders[id] = true
	return true
}

// AddFolder records a successfully fetched folder and increments the
// folder total. It returns false if the folder was already recorded.
func (s *CrawlState) AddFolder(f *Folder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[f.Info.ID]; ok {
		return false
	}
	s.folders[f.Info.ID] = f
	s.foldersTotal++
	return true
}

// AddThread records a discovered thread stub and increments the thread
// total. It returns false if the thread was already recorded; in that case
// the new stub is discarded and the first discovered path wins.
func (s *CrawlState) AddThread(t *ThreadStub) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[t.ID]; ok {
		return false
	}
	s.threads[t.ID] = t
	s.order = append(s.order, t.ID)
	s.threadsTotal++
	return true
}

// UpdateThreadStub fills in metadata (title, type, revision) on an already
// recorded stub. Unknown IDs are ignored.
func (s *CrawlState) UpdateThreadStub(id string, info ThreadInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stub, ok := s.threads[id]
	if !ok {
		return
	}
	stub.Title = info.Title
	stub.Type = info.Type
	stub.UpdatedUsec = info.UpdatedUsec
}

// Folder returns the recorded folder for the given ID, or nil.
func (s *CrawlState) Folder(id string) *Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folders[id]
}

// Threads returns the recorded thread stubs in discovery order.
// The returned slice is a copy; the stubs themselves are shared.
func (s *CrawlState) Threads() []*ThreadStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads := make([]*ThreadStub, 0, len(s.order))
	for _, id := range s.order {
		threads = append(threads, s.threads[id])
	}
	return threads
}

// FoldersTotal returns the number of distinct folders fetched so far.
// The value is monotonically non-decreasing.
func (s *CrawlState) FoldersTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foldersTotal
}

// ThreadsTotal returns the number of distinct threads discovered so far.
// The value is monotonically non-decreasing.
func (s *CrawlState) ThreadsTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadsTotal
}
