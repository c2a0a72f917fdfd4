package bindless

import "testing"

func TestQueryAllocatesOncePerHandle(t *testing.T) {
	tbl := NewTable()
	h := NewHandle(3, 1)

	slot, isNew := tbl.Query(h)
	if !isNew {
		t.Fatal("expected first query to allocate a new slot")
	}
	if slot == 0 {
		t.Fatal("expected a non-dummy slot for a real handle")
	}

	slot2, isNew2 := tbl.Query(h)
	if isNew2 {
		t.Fatal("expected second query for the same handle to reuse the slot")
	}
	if slot2 != slot {
		t.Fatalf("expected stable slot across repeated queries, got %d then %d", slot, slot2)
	}
}

func TestNullHandleResolvesToDummySlot(t *testing.T) {
	tbl := NewTable()
	slot, isNew := tbl.Query(NullHandle)
	if slot != 0 || isNew {
		t.Fatalf("expected NullHandle to resolve to (0, false), got (%d, %v)", slot, isNew)
	}
}

func TestRemoveRecyclesSlot(t *testing.T) {
	tbl := NewTable()
	h1 := NewHandle(1, 1)
	h2 := NewHandle(2, 1)

	slot1, _ := tbl.Query(h1)
	tbl.Remove(h1)

	slot2, isNew := tbl.Query(h2)
	if !isNew {
		t.Fatal("expected a fresh handle to allocate a new slot")
	}
	if slot2 != slot1 {
		t.Fatalf("expected the freed slot %d to be recycled, got %d", slot1, slot2)
	}
}

func TestRemoveThenRequeryAllocatesFresh(t *testing.T) {
	tbl := NewTable()
	h := NewHandle(5, 1)

	tbl.Query(h)
	tbl.Remove(h)

	_, isNew := tbl.Query(h)
	if !isNew {
		t.Fatal("expected requerying a removed handle to allocate a fresh slot")
	}
}

func TestLenCountsOnlyLiveSlots(t *testing.T) {
	tbl := NewTable()
	tbl.Query(NewHandle(1, 1))
	tbl.Query(NewHandle(2, 1))
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 live slots, got %d", tbl.Len())
	}
	tbl.Remove(NewHandle(1, 1))
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 live slot after removal, got %d", tbl.Len())
	}
}

func TestNewTablesInitializesBothArrays(t *testing.T) {
	tables := NewTables()
	if tables.Textures == nil || tables.Cubemaps == nil {
		t.Fatal("expected both texture and cubemap tables to be initialized")
	}
}
