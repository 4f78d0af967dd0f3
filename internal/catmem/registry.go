package catmem

import (
	"fmt"
	"sync"
)

// registry resolves a ring name to its backing sharedRing. The protocol's
// filesystem rendezvous layout (how two processes agree on a name out of
// band) is out of scope for this core, so a name simply indexes a
// process-local table; two endpoints opened by the same name within one
// process share the mapping, which is sufficient for every caller this
// repo ships (the façade and its tests).
var registry = struct {
	mu    sync.Mutex
	rings map[string]*namedRing
}{rings: make(map[string]*namedRing)}

type namedRing struct {
	ring     *sharedRing
	refCount int
}

// createRing allocates a fresh ring under name, failing if one already
// exists (mirrors a named pipe's O_CREAT|O_EXCL semantics).
func createRing(name string, capacity uint64) (*sharedRing, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.rings[name]; exists {
		return nil, fmt.Errorf("catmem: ring %q already exists", name)
	}
	r, err := newSharedRing(capacity)
	if err != nil {
		return nil, err
	}
	registry.rings[name] = &namedRing{ring: r, refCount: 1}
	return r, nil
}

// openRing attaches to an existing named ring, bumping its reference count.
func openRing(name string) (*sharedRing, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	nr, ok := registry.rings[name]
	if !ok {
		return nil, fmt.Errorf("catmem: ring %q does not exist", name)
	}
	nr.refCount++
	return nr.ring, nil
}

// releaseRing drops a reference, unmapping and removing the ring once the
// last endpoint has let go of it.
func releaseRing(name string) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	nr, ok := registry.rings[name]
	if !ok {
		return nil
	}
	nr.refCount--
	if nr.refCount > 0 {
		return nil
	}
	delete(registry.rings, name)
	return nr.ring.close()
}
