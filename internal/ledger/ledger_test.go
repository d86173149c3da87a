package ledger

import (
	"context"
	"testing"
)

func TestMemoryLedgerAffinity(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	if _, ok, _ := l.TopSupporter(ctx, "g1", "メジロ"); ok {
		t.Fatal("empty ledger should have no supporter")
	}
	l.AddAffinity(ctx, "g1", "メジロ", "alice", 1)
	l.AddAffinity(ctx, "g1", "メジロ", "bob", 2)
	l.AddAffinity(ctx, "g1", "メジロ", "alice", 3)
	l.AddAffinity(ctx, "g2", "メジロ", "carol", 10)

	top, ok, err := l.TopSupporter(ctx, "g1", "メジロ")
	if err != nil || !ok || top != "alice" {
		t.Errorf("top = %q ok=%v err=%v", top, ok, err)
	}
}

func TestMemoryLedgerNests(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	l.SetNest(ctx, "g1", "スズメ", "alice")
	owner, ok, _ := l.NestOwner(ctx, "g1", "スズメ")
	if !ok || owner != "alice" {
		t.Fatalf("owner = %q ok=%v", owner, ok)
	}
	if _, ok, _ := l.NestOwner(ctx, "g2", "スズメ"); ok {
		t.Error("nests must be per guild")
	}

	nests, _ := l.Nests(ctx, "g1")
	nests["ツバメ"] = "mallory"
	if _, ok, _ := l.NestOwner(ctx, "g1", "ツバメ"); ok {
		t.Error("Nests must return a copy")
	}

	l.ClearNest(ctx, "g1", "スズメ")
	if _, ok, _ := l.NestOwner(ctx, "g1", "スズメ"); ok {
		t.Error("nest not cleared")
	}
}
