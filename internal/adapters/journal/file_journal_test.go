package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

func event(tick, index int, malicious bool) domain.InjectionEvent {
	rec := domain.NormalizedRecord{
		DatasetRecord: domain.DatasetRecord{CANID: "0x2A0", Payload: "DEADBEEF", AttackType: "DoS", IsMalicious: malicious},
		SimTime:       float64(tick) / 10,
		Index:         index,
	}
	return domain.InjectionEvent{
		Actor:     domain.InjectedActor{ActorID: "veh", IsMalicious: malicious, InjectedAt: rec.SimTime},
		Record:    rec,
		TickIndex: tick,
	}
}

func collect(t *testing.T, j *FileJournal, from ports.JournalEntryID) []domain.InjectionEvent {
	t.Helper()
	var out []domain.InjectionEvent
	if err := j.Iterate(from, func(_ ports.JournalEntryID, ev domain.InjectionEvent) error {
		out = append(out, ev)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return out
}

func TestJournalAppendIterateAndReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	id1, err := j.Append(event(3, 0, true))
	if err != nil || id1 != 1 {
		t.Fatalf("append 1: %v id=%d", err, id1)
	}
	id2, err := j.Append(event(5, 1, false))
	if err != nil || id2 != 2 {
		t.Fatalf("append 2: %v id=%d", err, id2)
	}

	got := collect(t, j, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0] != event(3, 0, true) {
		t.Fatalf("first event round trip mismatch: %+v", got[0])
	}
	if tail := collect(t, j, id2); len(tail) != 1 || tail[0].TickIndex != 5 {
		t.Fatalf("iterate from %d: %+v", id2, tail)
	}

	size := j.Stats().SizeBytes
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := j.Append(event(6, 2, false)); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("append after close: %v", err)
	}

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	stats := j2.Stats()
	if stats.LatestAppended != id2 || stats.SizeBytes != size {
		t.Fatalf("unexpected stats after reopen: %+v (size %d)", stats, size)
	}
	id3, err := j2.Append(event(7, 2, false))
	if err != nil || id3 != 3 {
		t.Fatalf("append after reopen: %v id=%d", err, id3)
	}
	if n := len(collect(t, j2, 0)); n != 3 {
		t.Fatalf("expected 3 events after reopen, got %d", n)
	}
}

func TestJournalTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := j.Append(event(1, 0, true)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	good := j.Stats().SizeBytes
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	// header of entry 2 claiming 64 bytes, body cut short
	if _, err := f.Write([]byte{0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 64, 0xFF, 0xAA}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen after torn write: %v", err)
	}
	defer j2.Close()
	if s := j2.Stats(); s.LatestAppended != 1 || s.SizeBytes != good {
		t.Fatalf("torn tail not dropped: %+v want size %d", s, good)
	}
	if n := len(collect(t, j2, 0)); n != 1 {
		t.Fatalf("expected 1 surviving event, got %d", n)
	}
}

func TestJournalIterateStopsOnCallbackError(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()
	for i := 0; i < 3; i++ {
		if _, err := j.Append(event(i, i, false)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	stop := errors.New("stop")
	calls := 0
	err = j.Iterate(0, func(ports.JournalEntryID, domain.InjectionEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected callback error after 1 call, got %v after %d", err, calls)
	}
}
