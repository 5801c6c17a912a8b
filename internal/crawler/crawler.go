package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/quip-export/quip-export/internal/model"
	"github.com/quip-export/quip-export/internal/progress"
	"github.com/quip-export/quip-export/internal/quip"
)

// Client is the slice of the API client the crawler needs.
//
// Design decision: the crawler depends on this narrow interface rather than
// the concrete quip.Client so tests can drive it with an in-memory fake
// instead of an HTTP server.
type Client interface {
	// GetCurrentUser fetches the current user for default crawl seeds.
	GetCurrentUser(ctx context.Context) (*model.User, error)

	// GetFolder fetches a folder with its child references.
	GetFolder(ctx context.Context, folderID string) (*model.Folder, error)

	// GetFolders fetches several folders in one batched call. Folders the
	// token cannot access are absent from the result.
	GetFolders(ctx context.Context, folderIDs []string) (map[string]*model.Folder, error)

	// GetThreads fetches thread metadata in one batched call.
	GetThreads(ctx context.Context, threadIDs []string) (map[string]*model.Thread, error)
}

// Default crawler settings.
const (
	// DefaultConcurrency bounds how many folder fetches are in flight at
	// once. The server throttle, not local parallelism, is the real
	// bottleneck, so a moderate fan-out is enough.
	DefaultConcurrency = 10

	// folderBatchSize is the number of folder IDs fetched per batched
	// frontier call.
	folderBatchSize = 10

	// threadBatchSize is the number of thread IDs resolved per batched
	// metadata call.
	threadBatchSize = 10
)

// Crawler discovers the folder/thread graph reachable from a set of seed
// folders and records it in a CrawlState.
type Crawler struct {
	client      Client
	logger      *slog.Logger
	tracker     *progress.Tracker
	concurrency int
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithTracker sets the progress tracker. A nil tracker discards events.
func WithTracker(tracker *progress.Tracker) Option {
	return func(c *Crawler) {
		c.tracker = tracker
	}
}

// WithConcurrency bounds the number of concurrent folder fetches.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a Crawler using the given API client.
func New(client Client, opts ...Option) *Crawler {
	c := &Crawler{
		client:      client,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// crawlItem is a folder waiting for expansion together with the title path
// of the folder it was discovered under.
type crawlItem struct {
	folderID string
	path     []string
}

// Crawl expands the graph from the given seed folder IDs and returns the
// resulting inventory. With no seeds, the current user's root folders are
// used.
//
// Each frontier of undiscovered folders is fetched concurrently; the phase
// ends when the frontier is empty. Unavailable folders are logged and
// skipped together with their subtree.
func (c *Crawler) Crawl(ctx context.Context, seedIDs []string) (*model.CrawlState, error) {
	state := model.NewCrawlState()

	if len(seedIDs) == 0 {
		user, err := c.client.GetCurrentUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch current user for default folders: %w", err)
		}
		seedIDs = user.RootFolderIDs()
		c.logger.Debug("using account root folders as seeds", "count", len(seedIDs))
	}

	frontier := make([]crawlItem, 0, len(seedIDs))
	for _, id := range seedIDs {
		if state.ClaimFolder(id) {
			frontier = append(frontier, crawlItem{folderID: id})
		}
	}

	for len(frontier) > 0 {
		next, err := c.expandFrontier(ctx, state, frontier)
		if err != nil {
			return state, err
		}
		frontier = next
	}

	return state, nil
}

// expandFrontier fetches the current frontier in concurrent batched calls
// and returns the next frontier of newly claimed sub-folders.
func (c *Crawler) expandFrontier(ctx context.Context, state *model.CrawlState, frontier []crawlItem) ([]crawlItem, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	var batches [][]crawlItem
	for start := 0; start < len(frontier); start += folderBatchSize {
		end := min(start+folderBatchSize, len(frontier))
		batches = append(batches, frontier[start:end])
	}

	results := make([][]crawlItem, len(batches))
	for i, batch := range batches {
		g.Go(func() error {
			discovered, err := c.expandBatch(ctx, state, batch)
			if err != nil {
				return err
			}
			results[i] = discovered
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var next []crawlItem
	for _, discovered := range results {
		next = append(next, discovered...)
	}
	return next, nil
}

// expandBatch fetches one frontier batch in a single call and records each
// folder. IDs absent from the batched response, and whole batches the server
// would not serve, fall back to per-folder fetches so an unreachable folder
// only skips its own subtree.
func (c *Crawler) expandBatch(ctx context.Context, state *model.CrawlState, items []crawlItem) ([]crawlItem, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.folderID
	}

	folders, err := c.client.GetFolders(ctx, ids)
	if err != nil {
		if !errors.Is(err, quip.ErrUnavailable) {
			return nil, err
		}
		c.logger.Warn("folder batch failed, retrying folders individually",
			"count", len(ids),
			"error", err,
		)
		folders = nil
	}

	var discovered []crawlItem
	for _, item := range items {
		folder := folders[item.folderID]
		if folder == nil {
			folder, err = c.client.GetFolder(ctx, item.folderID)
			if err != nil {
				if errors.Is(err, quip.ErrUnavailable) {
					c.logger.Warn("skipping unreachable folder", "folderID", item.folderID, "error", err)
					c.tracker.Log("skipped unreachable folder " + item.folderID)
					continue
				}
				return nil, err
			}
		}
		discovered = append(discovered, c.recordFolder(ctx, state, item, folder)...)
	}
	return discovered, nil
}

// recordFolder records a fetched folder and its unseen children and returns
// the newly claimed sub-folders.
func (c *Crawler) recordFolder(ctx context.Context, state *model.CrawlState, item crawlItem, folder *model.Folder) []crawlItem {
	folder.Path = append(slices.Clone(item.path), folder.Info.Title)
	state.AddFolder(folder)

	var newFolders []crawlItem
	for _, child := range folder.Children {
		switch {
		case child.Restricted:
			// No access with this token; nothing to fetch.
		case child.IsFolder():
			if state.ClaimFolder(child.FolderID) {
				newFolders = append(newFolders, crawlItem{folderID: child.FolderID, path: folder.Path})
			}
		case child.IsThread():
			state.AddThread(&model.ThreadStub{ID: child.ThreadID, Path: folder.Path})
		}
	}

	c.resolveThreadStubs(ctx, state, folder)

	c.tracker.Progress(progress.Snapshot{
		ReadFolders: state.FoldersTotal(),
		ReadThreads: state.ThreadsTotal(),
	})
	c.tracker.Log("read folder " + folder.Info.Title)

	return newFolders
}

// resolveThreadStubs fills in title/type/revision metadata for the folder's
// thread children in batched calls. A failed batch leaves the stubs bare;
// the exporter falls back to the full thread fetch for those.
func (c *Crawler) resolveThreadStubs(ctx context.Context, state *model.CrawlState, folder *model.Folder) {
	var ids []string
	for _, child := range folder.Children {
		if child.IsThread() && !child.Restricted {
			ids = append(ids, child.ThreadID)
		}
	}

	for start := 0; start < len(ids); start += threadBatchSize {
		end := min(start+threadBatchSize, len(ids))
		batch := ids[start:end]

		threads, err := c.client.GetThreads(ctx, batch)
		if err != nil {
			c.logger.Warn("thread metadata batch failed",
				"folderID", folder.Info.ID,
				"count", len(batch),
				"error", err,
			)
			continue
		}
		for id, thread := range threads {
			state.UpdateThreadStub(id, thread.Info)
		}
	}
}
