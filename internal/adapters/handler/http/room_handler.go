package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
	"github.com/vncsmyrnk/pokeplan/internal/core/services"
)

// DeckCatalogue lists the decks a room can be created with.
type DeckCatalogue interface {
	Get(name string) (domain.Deck, bool)
	Default() domain.Deck
}

type RoomHandler struct {
	lobby        ports.LobbyService
	participants ports.ParticipantRepository
	identities   ports.IdentityDirectory
	decks        DeckCatalogue
	baseURL      string
}

func NewRoomHandler(
	lobby ports.LobbyService,
	participants ports.ParticipantRepository,
	identities ports.IdentityDirectory,
	decks DeckCatalogue,
	baseURL string,
) *RoomHandler {
	return &RoomHandler{
		lobby:        lobby,
		participants: participants,
		identities:   identities,
		decks:        decks,
		baseURL:      baseURL,
	}
}

type createRoomRequest struct {
	RoomName     string      `json:"room_name"`
	Name         string      `json:"name"`
	Emoji        string      `json:"emoji"`
	Deck         string      `json:"deck"`
	VotingSystem domain.Deck `json:"voting_system"`
}

type joinRoomRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

type roomResponse struct {
	Room      *domain.Room     `json:"room"`
	Identity  *domain.Identity `json:"identity,omitempty"`
	ShareLink string           `json:"share_link"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deck := req.VotingSystem
	if len(deck) == 0 {
		if req.Deck == "" {
			deck = h.decks.Default()
		} else {
			var ok bool
			if deck, ok = h.decks.Get(req.Deck); !ok {
				http.Error(w, "unknown deck "+req.Deck, http.StatusBadRequest)
				return
			}
		}
	}

	input := ports.CreateRoomInput{
		RoomName:     req.RoomName,
		Name:         req.Name,
		Emoji:        req.Emoji,
		VotingSystem: deck,
	}
	room, identity, err := h.lobby.CreateRoom(r.Context(), input, h.sessionStore(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, roomResponse{
		Room:      room,
		Identity:  identity,
		ShareLink: services.ShareLink(h.baseURL, room.ID),
	})
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	room, err := h.lobby.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, roomResponse{Room: room, ShareLink: services.ShareLink(h.baseURL, room.ID)})
}

func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := ports.JoinRoomInput{RoomID: roomID, Name: req.Name, Emoji: req.Emoji}
	room, identity, err := h.lobby.JoinRoom(r.Context(), input, h.sessionStore(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, roomResponse{
		Room:      room,
		Identity:  identity,
		ShareLink: services.ShareLink(h.baseURL, room.ID),
	})
}

// GetMe returns the identity this browser holds for the room. A 404 tells
// the page to show the join form.
func (h *RoomHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	identity, err := services.NewSessionResolver(h.sessionStore(r), h.participants).Resolve(r.Context(), roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if identity == nil {
		http.Error(w, domain.ErrNoIdentity.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, identity)
}

func (h *RoomHandler) RandomEmoji(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"emoji": services.RandomEmoji()})
}

func (h *RoomHandler) sessionStore(r *http.Request) ports.IdentityStore {
	sessionID, _ := SessionID(r.Context())
	return h.identities.ForSession(sessionID)
}

func roomIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, domain.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
