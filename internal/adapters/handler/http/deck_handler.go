package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/pokeplan/internal/config"
)

type DeckHandler struct {
	catalogue *config.Catalogue
}

func NewDeckHandler(catalogue *config.Catalogue) *DeckHandler {
	return &DeckHandler{catalogue: catalogue}
}

func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.catalogue.List())
}

func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	deck, ok := h.catalogue.Get(name)
	if !ok {
		http.Error(w, "deck not found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, config.NamedDeck{Name: name, Cards: deck})
}
