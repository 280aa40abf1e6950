package ledger

import "github.com/go-chi/chi/v5"

// MountRoutes registers journal entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.createDraft)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.updateDraft)
	r.Delete("/{id}", h.deleteDraft)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/reverse", h.reverse)
}
