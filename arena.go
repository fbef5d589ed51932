package framevk

import "github.com/andewx/framevk/gpu"

type arenaKey struct {
	kind   gpu.Kind
	handle gpu.Handle
}

type arenaEntry struct {
	key      arenaKey
	owner    string
	release  func()
	parents  []*arenaEntry
	children int
	released bool
}

// Arena is the ownership table for GPU objects. Every tracked handle names
// its owning subsystem and the handles it depends on; a handle cannot be
// released while anything created on top of it is still alive, so views go
// before images and images before their memory.
type Arena struct {
	entries []*arenaEntry
	byKey   map[arenaKey]*arenaEntry
}

func NewArena() *Arena {
	return &Arena{byKey: make(map[arenaKey]*arenaEntry)}
}

// Parent names a dependency of a tracked handle.
type Parent struct {
	Kind   gpu.Kind
	Handle gpu.Handle
}

func ParentOf(kind gpu.Kind, handle gpu.Handle) Parent {
	return Parent{Kind: kind, Handle: handle}
}

// Track records a live handle. The release function runs at most once.
func (a *Arena) Track(owner string, kind gpu.Kind, handle gpu.Handle, release func(), parents ...Parent) error {
	key := arenaKey{kind, handle}
	if handle == gpu.NullHandle {
		return invalidArgumentf("track null %s for %s", kind, owner)
	}
	if e, ok := a.byKey[key]; ok && !e.released {
		return invalidArgumentf("%s %d already owned by %s", kind, handle, e.owner)
	}
	entry := &arenaEntry{key: key, owner: owner, release: release}
	for _, p := range parents {
		parent, ok := a.byKey[arenaKey{p.Kind, p.Handle}]
		if !ok || parent.released {
			return invalidArgumentf("%s %d depends on untracked %s %d", kind, handle, p.Kind, p.Handle)
		}
		parent.children++
		entry.parents = append(entry.parents, parent)
	}
	a.entries = append(a.entries, entry)
	a.byKey[key] = entry
	return nil
}

// Release destroys one handle. Releasing a handle that still has live
// dependents is an ordering bug and leaves everything untouched.
func (a *Arena) Release(kind gpu.Kind, handle gpu.Handle) error {
	entry, ok := a.byKey[arenaKey{kind, handle}]
	if !ok || entry.released {
		return invalidArgumentf("release of unknown %s %d", kind, handle)
	}
	if entry.children > 0 {
		return invalidArgumentf("release of %s %d while %d dependents are alive", kind, handle, entry.children)
	}
	a.release(entry)
	return nil
}

func (a *Arena) release(entry *arenaEntry) {
	entry.released = true
	for _, p := range entry.parents {
		p.children--
	}
	delete(a.byKey, entry.key)
	if entry.release != nil {
		entry.release()
	}
}

// ReleaseOwner destroys every live handle of one owner, newest first.
func (a *Arena) ReleaseOwner(owner string) error {
	return a.releaseMatching(func(e *arenaEntry) bool { return e.owner == owner })
}

// ReleaseAll destroys every live handle, newest first.
func (a *Arena) ReleaseAll() error {
	return a.releaseMatching(func(*arenaEntry) bool { return true })
}

func (a *Arena) releaseMatching(match func(*arenaEntry) bool) error {
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.released || !match(e) {
			continue
		}
		if e.children > 0 {
			a.compact()
			return invalidArgumentf("%s %d of %s outlives its release scope", e.key.kind, e.key.handle, e.owner)
		}
		a.release(e)
	}
	a.compact()
	return nil
}

func (a *Arena) compact() {
	live := a.entries[:0]
	for _, e := range a.entries {
		if !e.released {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(a.entries); i++ {
		a.entries[i] = nil
	}
	a.entries = live
}

// Live counts the live handles of an owner, or of every owner when owner is
// empty.
func (a *Arena) Live(owner string) int {
	n := 0
	for _, e := range a.entries {
		if !e.released && (owner == "" || e.owner == owner) {
			n++
		}
	}
	return n
}

func (a *Arena) Owns(kind gpu.Kind, handle gpu.Handle) bool {
	e, ok := a.byKey[arenaKey{kind, handle}]
	return ok && !e.released
}
