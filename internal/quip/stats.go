package quip

import "sync/atomic"

// Stats counts API calls per logical operation for post-run diagnostics.
// Counters are incremented atomically by concurrent in-flight calls and are
// never used for control flow.
//
// The counter set mirrors the operations the client exposes: one total plus
// one counter per endpoint family.
type Stats struct {
	Queries        atomic.Int64
	GetCurrentUser atomic.Int64
	GetFolder      atomic.Int64
	GetFolders     atomic.Int64
	GetThread      atomic.Int64
	GetThreads     atomic.Int64
	GetBlob        atomic.Int64
	GetMessages    atomic.Int64
	ExportDocx     atomic.Int64
	ExportXlsx     atomic.Int64
	ExportPDF      atomic.Int64
	UpdateThread   atomic.Int64
	LockThread     atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats, suitable for logging and
// for the run summary report.
type StatsSnapshot struct {
	Queries        int64
	GetCurrentUser int64
	GetFolder      int64
	GetFolders     int64
	GetThread      int64
	GetThreads     int64
	GetBlob        int64
	GetMessages    int64
	ExportDocx     int64
	ExportXlsx     int64
	ExportPDF      int64
	UpdateThread   int64
	LockThread     int64
}

// Snapshot returns a consistent-enough copy of the counters. Individual
// loads are atomic; the snapshot as a whole may straddle in-flight calls,
// which is fine for diagnostics.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:        s.Queries.Load(),
		GetCurrentUser: s.GetCurrentUser.Load(),
		GetFolder:      s.GetFolder.Load(),
		GetFolders:     s.GetFolders.Load(),
		GetThread:      s.GetThread.Load(),
		GetThreads:     s.GetThreads.Load(),
		GetBlob:        s.GetBlob.Load(),
		GetMessages:    s.GetMessages.Load(),
		ExportDocx:     s.ExportDocx.Load(),
		ExportXlsx:     s.ExportXlsx.Load(),
		ExportPDF:      s.ExportPDF.Load(),
		UpdateThread:   s.UpdateThread.Load(),
		LockThread:     s.LockThread.Load(),
	}
}
