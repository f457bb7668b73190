package imagestore

import (
	"sync"

	"github.com/google/uuid"
)

// previewRegistry backs the revocable preview handles. Serving bytes for a
// released handle fails, which is exactly the use-after-release signal the
// ownership rule exists to surface.
type previewRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]byte
}

func newPreviewRegistry() *previewRegistry {
	return &previewRegistry{entries: make(map[uuid.UUID][]byte)}
}

func (r *previewRegistry) create(id uuid.UUID, data []byte) *previewHandle {
	r.mu.Lock()
	r.entries[id] = data
	r.mu.Unlock()
	return &previewHandle{registry: r, id: id}
}

func (r *previewRegistry) bytes(id uuid.UUID) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.entries[id]
	return data, ok
}

func (r *previewRegistry) revoke(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// previewHandle is the store-owned revocable preview resource.
// Release is idempotent through sync.Once so double-release cannot free a
// successor entry under the same id.
type previewHandle struct {
	registry *previewRegistry
	id       uuid.UUID
	released sync.Once
}

func (h *previewHandle) URL() string {
	return "/previews/" + h.id.String()
}

func (h *previewHandle) Release() {
	h.released.Do(func() {
		h.registry.revoke(h.id)
	})
}
