package lock

import "sync"

// Holdings records which critical sections one session currently holds.
// The zero value is ready to use; Owner is informational.
type Holdings struct {
	Owner string

	mu       sync.Mutex
	releases map[Kind]Release
}

// Holds reports whether the session holds k.
func (h *Holdings) Holds(k Kind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.releases[k]
	return ok
}

// Held lists the kinds currently held, in Kind order.
func (h *Holdings) Held() []Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Kind
	for _, k := range []Kind{Booking, Signup, Deletion} {
		if _, ok := h.releases[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// ReleaseAll releases everything still held and returns what it released.
func (h *Holdings) ReleaseAll() []Kind {
	held := h.Held()
	h.mu.Lock()
	rels := make([]Release, 0, len(held))
	for _, k := range held {
		rels = append(rels, h.releases[k])
	}
	h.mu.Unlock()
	// Deletion is taken last (booking → deletion), so release in reverse.
	for i := len(rels) - 1; i >= 0; i-- {
		rels[i]()
	}
	return held
}

func (h *Holdings) track(k Kind, unlock func()) Release {
	var once sync.Once
	rel := Release(func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.releases, k)
			h.mu.Unlock()
			unlock()
		})
	})
	h.mu.Lock()
	if h.releases == nil {
		h.releases = map[Kind]Release{}
	}
	h.releases[k] = rel
	h.mu.Unlock()
	return rel
}
