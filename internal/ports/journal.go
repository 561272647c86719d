package ports

import "github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"

type JournalEntryID uint64

// InjectionJournal is an append-only log of created actors used to rebuild
// the outputs of a run that was killed before it could finalize.
type InjectionJournal interface {
	Append(ev domain.InjectionEvent) (JournalEntryID, error)
	Iterate(from JournalEntryID, fn func(id JournalEntryID, ev domain.InjectionEvent) error) error
	Sync() error
	Stats() JournalStats
	Close() error
}

type JournalStats struct {
	LatestAppended JournalEntryID
	SizeBytes      int64
}
