package iocache

import "testing"

func TestPendingTableInsertRemove(t *testing.T) {
	table := make(pendingTable)
	buf := NewBuffer(64)
	pw := &pendingWrite{buf: buf}

	table.insert(7, pw)
	if got := table.remove(7); got != pw {
		t.Error("remove returned a different pending write")
	}
	if len(table) != 0 {
		t.Errorf("len(table) = %d, want 0", len(table))
	}
}

func TestPendingTableDuplicateIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate id insert")
		}
	}()

	table := make(pendingTable)
	table.insert(1, &pendingWrite{})
	table.insert(1, &pendingWrite{})
}

func TestPendingTableUnknownIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown id remove")
		}
	}()

	table := make(pendingTable)
	table.remove(99)
}
