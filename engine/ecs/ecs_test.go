package ecs

import "testing"

func TestRegistryCreateDestroyRecycle(t *testing.T) {
	r := NewRegistry()
	e1 := r.Create()
	if !r.Alive(e1) {
		t.Fatal("freshly created entity should be alive")
	}
	if e1.Index() != 0 || e1.Generation() != 1 {
		t.Fatalf("expected index 0 generation 1, got index %d generation %d", e1.Index(), e1.Generation())
	}

	r.Destroy(e1)
	if r.Alive(e1) {
		t.Fatal("destroyed entity should not be alive")
	}

	e2 := r.Create()
	if e2.Index() != e1.Index() {
		t.Fatalf("expected recycled index %d, got %d", e1.Index(), e2.Index())
	}
	if e2.Generation() != e1.Generation()+1 {
		t.Fatalf("expected generation %d, got %d", e1.Generation()+1, e2.Generation())
	}
	if r.Alive(e1) {
		t.Fatal("stale handle to a recycled slot must not read as alive")
	}
	if !r.Alive(e2) {
		t.Fatal("newly recycled entity should be alive")
	}
}

func TestRegistryCount(t *testing.T) {
	r := NewRegistry()
	a := r.Create()
	b := r.Create()
	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}
	r.Destroy(a)
	if r.Count() != 1 {
		t.Fatalf("expected count 1 after destroy, got %d", r.Count())
	}
	r.Destroy(b)
	if r.Count() != 0 {
		t.Fatalf("expected count 0, got %d", r.Count())
	}
}

func TestNullEntityNeverAlive(t *testing.T) {
	r := NewRegistry()
	if r.Alive(NullEntity) {
		t.Fatal("null entity must never report alive")
	}
}

func TestStoreSetGetRemove(t *testing.T) {
	r := NewRegistry()
	e := r.Create()
	s := NewStore[int]()

	if _, ok := s.Get(e); ok {
		t.Fatal("expected no component before Set")
	}
	s.Set(e, 42)
	v, ok := s.Get(e)
	if !ok || v != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", v, ok)
	}
	s.Remove(e)
	if s.Has(e) {
		t.Fatal("expected component removed")
	}
}

func TestQuery2Intersection(t *testing.T) {
	r := NewRegistry()
	e1, e2, e3 := r.Create(), r.Create(), r.Create()

	a := NewStore[string]()
	b := NewStore[int]()
	a.Set(e1, "one")
	a.Set(e2, "two")
	b.Set(e2, 2)
	b.Set(e3, 3)

	got := Query2(a, b)
	if len(got) != 1 || got[0] != e2 {
		t.Fatalf("expected [%v], got %v", e2, got)
	}
}
