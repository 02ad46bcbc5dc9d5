package game

import "testing"

func TestLedger_AddMergesByID(t *testing.T) {
	common, _ := ItemByID("common-fish")
	var l Ledger
	l.Add(common, 1)
	l.Add(common, 1)
	if len(l.Items) != 1 {
		t.Fatalf("got %d lines, want 1", len(l.Items))
	}
	if got := l.Quantity("common-fish"); got != 2 {
		t.Fatalf("quantity %d, want 2", got)
	}
}

func TestLedger_RemoveExactDeletesLine(t *testing.T) {
	gold, _ := ItemByID("gold-fish")
	var l Ledger
	l.Add(gold, 3)
	if err := l.Remove("gold-fish", 3); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(l.Items) != 0 {
		t.Fatalf("zero-quantity residue: %+v", l.Items)
	}
}

func TestLedger_RemoveInsufficientLeavesLedgerIntact(t *testing.T) {
	gold, _ := ItemByID("gold-fish")
	var l Ledger
	l.Add(gold, 2)
	if err := l.Remove("gold-fish", 5); err == nil {
		t.Fatalf("over-remove succeeded")
	}
	if got := l.Quantity("gold-fish"); got != 2 {
		t.Fatalf("ledger mutated on failure: quantity %d", got)
	}
	if err := l.Remove("diamond-fish", 1); err == nil {
		t.Fatalf("remove of unheld item succeeded")
	}
}
