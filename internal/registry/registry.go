// Package registry tracks the set of connected handles and the pending
// file offers queued against each of them. All state lives behind one
// coarse mutex; callers never hold it across a network or disk operation.
package registry

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrHandleTaken is returned by InsertIfAbsent when the handle is already
// registered to a live connection.
var ErrHandleTaken = errors.New("registry: handle already taken")

// UserRecord is the registry's view of one connected peer.
type UserRecord struct {
	Handle string
	Conn   net.Conn
	Offers []Offer
}

// Offer is one pending inbound file offer, queued against the recipient
// until it is answered with Ok or No.
type Offer struct {
	Sender   string
	Filename string
}

// Registry is the concurrent handle -> UserRecord map described in
// spec.md's data model. Create one with New; the zero value has no map
// and is not ready to use.
type Registry struct {
	mu    sync.Mutex
	users map[string]*UserRecord
}

// New returns an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{users: make(map[string]*UserRecord)}
}

// InsertIfAbsent registers handle bound to conn, or returns ErrHandleTaken
// if another live connection already owns that handle.
func (r *Registry) InsertIfAbsent(handle string, conn net.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[handle]; ok {
		return fmt.Errorf("%w: %s", ErrHandleTaken, handle)
	}
	r.users[handle] = &UserRecord{Handle: handle, Conn: conn}
	return nil
}

// Remove deletes handle from the registry. It is a no-op if handle is not
// present, so session teardown can call it unconditionally.
func (r *Registry) Remove(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, handle)
}

// ListOthers returns every registered handle except exclude, in no
// particular order.
func (r *Registry) ListOthers(exclude string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]string, 0, len(r.users))
	for h := range r.users {
		if h == exclude {
			continue
		}
		handles = append(handles, h)
	}
	return handles
}

// Snapshot returns a copy of the record for handle, and whether it exists.
func (r *Registry) Snapshot(handle string) (UserRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[handle]
	if !ok {
		return UserRecord{}, false
	}
	cp := *rec
	cp.Offers = append([]Offer(nil), rec.Offers...)
	return cp, true
}

// AppendOffer queues an offer from sender against recipient. It returns
// false if recipient is not currently registered.
func (r *Registry) AppendOffer(recipient string, offer Offer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[recipient]
	if !ok {
		return false
	}
	rec.Offers = append(rec.Offers, offer)
	return true
}

// OffersFor returns a copy of the pending offer queue for handle.
func (r *Registry) OffersFor(handle string) []Offer {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[handle]
	if !ok {
		return nil
	}
	return append([]Offer(nil), rec.Offers...)
}

// RemoveOffer removes the first offer from sender queued against
// recipient, and reports whether one was found.
func (r *Registry) RemoveOffer(recipient, sender string) (Offer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[recipient]
	if !ok {
		return Offer{}, false
	}
	for i, o := range rec.Offers {
		if o.Sender == sender {
			rec.Offers = append(rec.Offers[:i], rec.Offers[i+1:]...)
			return o, true
		}
	}
	return Offer{}, false
}

// Count returns the number of currently registered handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
