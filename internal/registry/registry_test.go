package registry

import (
	"sync"
	"testing"
)

func TestInsertIfAbsent(t *testing.T) {
	r := New()

	if err := r.InsertIfAbsent("alice", nil); err != nil {
		t.Fatalf("first insert: unexpected error: %v", err)
	}

	if err := r.InsertIfAbsent("alice", nil); err == nil {
		t.Fatal("second insert: expected ErrHandleTaken, got nil")
	}

	if err := r.InsertIfAbsent("bob", nil); err != nil {
		t.Fatalf("distinct handle: unexpected error: %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	r.Remove("ghost") // must not panic on an absent handle

	if err := r.InsertIfAbsent("alice", nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	r.Remove("alice")
	r.Remove("alice") // second removal is a no-op

	if err := r.InsertIfAbsent("alice", nil); err != nil {
		t.Fatalf("re-insert after removal: unexpected error: %v", err)
	}
}

func TestListOthersExcludesSelf(t *testing.T) {
	r := New()
	for _, h := range []string{"alice", "bob", "carol"} {
		if err := r.InsertIfAbsent(h, nil); err != nil {
			t.Fatalf("insert %s: %v", h, err)
		}
	}

	others := r.ListOthers("alice")
	if len(others) != 2 {
		t.Fatalf("expected 2 others, got %d: %v", len(others), others)
	}
	for _, h := range others {
		if h == "alice" {
			t.Fatalf("ListOthers(%q) included the caller", "alice")
		}
	}
}

func TestAppendAndRemoveOffer(t *testing.T) {
	r := New()
	if err := r.InsertIfAbsent("bob", nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if ok := r.AppendOffer("bob", Offer{Sender: "alice", Filename: "photo.png"}); !ok {
		t.Fatal("AppendOffer to a registered recipient should succeed")
	}
	if ok := r.AppendOffer("nobody", Offer{Sender: "alice", Filename: "x"}); ok {
		t.Fatal("AppendOffer to an unregistered recipient should fail")
	}

	offers := r.OffersFor("bob")
	if len(offers) != 1 || offers[0].Sender != "alice" {
		t.Fatalf("unexpected offers: %+v", offers)
	}

	got, found := r.RemoveOffer("bob", "alice")
	if !found || got.Filename != "photo.png" {
		t.Fatalf("RemoveOffer: got %+v, found=%v", got, found)
	}

	if _, found := r.RemoveOffer("bob", "alice"); found {
		t.Fatal("RemoveOffer should not find an already-removed offer")
	}
}

// TestConcurrentAppendOfferBothLand exercises the same property spec.md §8
// requires: two sessions issuing glide at the same recipient concurrently
// must both be queued, not overwrite one another.
func TestConcurrentAppendOfferBothLand(t *testing.T) {
	r := New()
	if err := r.InsertIfAbsent("bob", nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var wg sync.WaitGroup
	senders := []string{"alice", "carol"}
	for _, sender := range senders {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			r.AppendOffer("bob", Offer{Sender: sender, Filename: "file.bin"})
		}(sender)
	}
	wg.Wait()

	offers := r.OffersFor("bob")
	if len(offers) != 2 {
		t.Fatalf("expected both concurrent offers to land, got %d: %+v", len(offers), offers)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	if err := r.InsertIfAbsent("alice", nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	r.AppendOffer("alice", Offer{Sender: "bob", Filename: "a.txt"})

	snap, ok := r.Snapshot("alice")
	if !ok {
		t.Fatal("expected alice to be present")
	}
	snap.Offers[0].Filename = "mutated"

	offers := r.OffersFor("alice")
	if offers[0].Filename != "a.txt" {
		t.Fatalf("Snapshot leaked a mutable reference: registry now has %q", offers[0].Filename)
	}
}
