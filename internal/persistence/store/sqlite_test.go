package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"basedfrenzy.com/internal/game"
)

const testAddr = "0x9BDB113c9dbE5114440D420AE94721EbD3732372"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "frenzy.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateAndGetPlayer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.CreatePlayer(ctx, Player{Address: testAddr, Username: "Alice", LastSeen: seen}); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}

	p, err := s.GetPlayer(ctx, testAddr)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.Username != "Alice" || p.Bait != 0 || p.FishingRods != 0 {
		t.Fatalf("player: %+v", p)
	}
	if !p.LastSeen.Equal(seen) {
		t.Fatalf("last seen %v, want %v", p.LastSeen, seen)
	}

	if err := s.CreatePlayer(ctx, Player{Address: testAddr, Username: "Mallory", LastSeen: seen}); err != ErrExists {
		t.Fatalf("duplicate create: got %v, want ErrExists", err)
	}
	if _, err := s.GetPlayer(ctx, "0x0000000000000000000000000000000000000000"); err != ErrNotFound {
		t.Fatalf("missing player: got %v, want ErrNotFound", err)
	}
}

func TestStore_UpsertPreservesCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.UpsertPlayer(ctx, testAddr, "Alice", time.Now())
	if err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	p.Bait = 7
	p.FishingRods = 2
	if err := s.SavePlayer(ctx, p); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}

	p2, err := s.UpsertPlayer(ctx, testAddr, "AliceRenamed", time.Now())
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if p2.Username != "AliceRenamed" {
		t.Fatalf("username not refreshed: %q", p2.Username)
	}
	if p2.Bait != 7 || p2.FishingRods != 2 {
		t.Fatalf("counts clobbered: %+v", p2)
	}
}

func TestStore_LedgerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreatePlayer(ctx, Player{Address: testAddr, Username: "Alice", LastSeen: time.Now()}); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}

	l, err := s.EnsureLedger(ctx, testAddr)
	if err != nil {
		t.Fatalf("EnsureLedger: %v", err)
	}
	if l.Items == nil || len(l.Items) != 0 {
		t.Fatalf("fresh ledger: %+v", l.Items)
	}

	gold, _ := game.ItemByID("gold-fish")
	l.Add(gold, 3)
	if err := s.SaveLedger(ctx, l); err != nil {
		t.Fatalf("SaveLedger: %v", err)
	}

	got, err := s.GetLedger(ctx, testAddr)
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if got.Quantity("gold-fish") != 3 {
		t.Fatalf("ledger round trip: %+v", got.Items)
	}

	// Ensure on an existing ledger is a no-op.
	again, err := s.EnsureLedger(ctx, testAddr)
	if err != nil {
		t.Fatalf("second EnsureLedger: %v", err)
	}
	if again.Quantity("gold-fish") != 3 {
		t.Fatalf("ensure reset the ledger: %+v", again.Items)
	}
}

func TestStore_SaveMissingIsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SavePlayer(ctx, Player{Address: testAddr, Username: "Ghost", LastSeen: time.Now()})
	if err != ErrNotFound {
		t.Fatalf("SavePlayer on missing row: got %v", err)
	}
	if err := s.SaveLedger(ctx, game.Ledger{Address: testAddr}); err != ErrNotFound {
		t.Fatalf("SaveLedger on missing row: got %v", err)
	}
}
