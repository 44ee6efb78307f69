package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/pokeplan/internal/config"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/services"
)

type TestApp struct {
	Server     *httptest.Server
	Broker     *realtime.Broker
	DB         *memory.DB
	Identities *memory.Identities
	Sessions   *Sessions
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()

	broker := realtime.NewBroker()
	db := memory.New(broker)
	store := db.Store()
	identities := memory.NewIdentities()
	clock := clockwork.NewRealClock()
	sessions := NewSessions("test-secret", false, "", clock)

	catalogue, err := config.ParseDecks([]byte(`
decks:
  - name: tshirt
    cards:
      - {value: S, label: Small}
      - {value: L, label: Large}
`))
	require.NoError(t, err)

	lobby := services.NewLobbyService(store.Rooms, store.Participants, clock)
	roomHandler := NewRoomHandler(lobby, store.Participants, identities, catalogue, "https://poker.example")
	deckHandler := NewDeckHandler(catalogue)
	socketHandler := NewRoomSocketHandler(
		services.RoomViewDeps{Store: store, Feed: broker, Clock: clock},
		identities,
		"https://poker.example",
		DefaultSocketConfig(),
	)

	server := httptest.NewServer(NewHandler(roomHandler, deckHandler, socketHandler, sessions, []string{"*"}, nil))
	t.Cleanup(func() {
		server.Close()
		broker.Close()
	})

	return &TestApp{Server: server, Broker: broker, DB: db, Identities: identities, Sessions: sessions}
}

// newBrowser returns a client that keeps its session cookie like a browser.
func (app *TestApp) newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (app *TestApp) postJSON(t *testing.T, client *http.Client, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(app.Server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (app *TestApp) get(t *testing.T, client *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(app.Server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (app *TestApp) createRoom(t *testing.T, client *http.Client, body map[string]any) roomResponse {
	t.Helper()
	resp := app.postJSON(t, client, "/api/rooms", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created roomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func (app *TestApp) dial(t *testing.T, client *http.Client, roomID uuid.UUID) *websocket.Conn {
	t.Helper()
	base, err := url.Parse(app.Server.URL)
	require.NoError(t, err)

	header := http.Header{}
	for _, c := range client.Jar.Cookies(base) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(app.Server.URL, "http") + "/api/rooms/" + roomID.String() + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads server messages until one satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(typ string, data json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg.Type, msg.Data) {
			return msg.Data
		}
	}
}

func readState(t *testing.T, conn *websocket.Conn, match func(StateView) bool) StateView {
	t.Helper()
	var view StateView
	readUntil(t, conn, func(typ string, data json.RawMessage) bool {
		if typ != MessageState {
			return false
		}
		view = StateView{}
		if err := json.Unmarshal(data, &view); err != nil {
			return false
		}
		return match(view)
	})
	return view
}

func TestHealth(t *testing.T) {
	app := setupTestApp(t)
	client := app.newBrowser(t)

	resp := app.get(t, client, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth_Unavailable(t *testing.T) {
	catalogue := config.DefaultCatalogue()
	handler := NewHandler(nil, NewDeckHandler(catalogue), nil, NewSessions("s", false, "", nil), []string{"*"}, func(context.Context) error {
		return errors.New("db down")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDecks(t *testing.T) {
	app := setupTestApp(t)
	client := app.newBrowser(t)

	resp := app.get(t, client, "/api/decks/default")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deck config.NamedDeck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&deck))
	assert.Equal(t, domain.DefaultDeck(), deck.Cards)

	resp = app.get(t, client, "/api/decks/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decks []config.NamedDeck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decks))
	assert.Len(t, decks, 2)

	resp = app.get(t, client, "/api/decks/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomLobbyFlow(t *testing.T) {
	app := setupTestApp(t)
	admin := app.newBrowser(t)
	guest := app.newBrowser(t)

	// 1. Create a room with a catalogue deck
	created := app.createRoom(t, admin, map[string]any{"room_name": " Sprint 42 ", "name": "Ana", "emoji": "🦊", "deck": "tshirt"})
	assert.Equal(t, "Sprint 42", created.Room.Name)
	assert.Equal(t, "Small", created.Room.VotingSystem[0].Label)
	require.NotNil(t, created.Identity)
	assert.True(t, created.Identity.IsAdmin)
	assert.Equal(t, "https://poker.example/room/"+created.Room.ID.String(), created.ShareLink)

	roomPath := "/api/rooms/" + created.Room.ID.String()

	// 2. The creator's browser remembers who they are
	resp := app.get(t, admin, roomPath+"/me")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me domain.Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, created.Identity.ID, me.ID)

	// 3. Another browser sees the room but has no identity yet
	resp = app.get(t, guest, roomPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = app.get(t, guest, roomPath+"/me")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 4. Joining gives the guest a non-admin identity
	resp = app.postJSON(t, guest, roomPath+"/participants", map[string]string{"name": "Bruno"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var joined roomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&joined))
	assert.False(t, joined.Identity.IsAdmin)
	assert.Contains(t, domain.DefaultEmojis, joined.Identity.Emoji)

	resp = app.get(t, guest, roomPath+"/me")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomLobby_Errors(t *testing.T) {
	app := setupTestApp(t)
	client := app.newBrowser(t)

	resp := app.postJSON(t, client, "/api/rooms", map[string]any{"room_name": "", "name": "Ana"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = app.postJSON(t, client, "/api/rooms", map[string]any{"room_name": "R", "name": "Ana", "deck": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = app.postJSON(t, client, "/api/rooms", map[string]any{
		"room_name":     "R",
		"name":          "Ana",
		"voting_system": []map[string]any{{"value": 1, "label": "a"}, {"value": "1", "label": "b"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = app.get(t, client, "/api/rooms/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = app.get(t, client, "/api/rooms/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = app.postJSON(t, client, "/api/rooms/"+uuid.NewString()+"/participants", map[string]string{"name": "Bruno"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomSocket_RequiresIdentity(t *testing.T) {
	app := setupTestApp(t)
	admin := app.newBrowser(t)
	stranger := app.newBrowser(t)
	created := app.createRoom(t, admin, map[string]any{"room_name": "R", "name": "Ana"})

	resp := app.get(t, stranger, "/api/rooms/"+created.Room.ID.String()+"/ws")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = app.get(t, stranger, "/api/rooms/"+uuid.NewString()+"/ws")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomSocket_VotingRound(t *testing.T) {
	app := setupTestApp(t)
	adminBrowser := app.newBrowser(t)
	guestBrowser := app.newBrowser(t)

	created := app.createRoom(t, adminBrowser, map[string]any{"room_name": "Sprint", "name": "Ana"})
	roomID := created.Room.ID
	resp := app.postJSON(t, guestBrowser, "/api/rooms/"+roomID.String()+"/participants", map[string]string{"name": "Bruno"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	admin := app.dial(t, adminBrowser, roomID)
	guest := app.dial(t, guestBrowser, roomID)

	// 1. Both views load the room
	initial := readState(t, admin, func(v StateView) bool { return len(v.Participants) == 2 })
	assert.True(t, initial.Me.IsAdmin)
	assert.Equal(t, created.ShareLink, initial.ShareLink)
	readState(t, guest, func(v StateView) bool { return len(v.Participants) == 2 })

	// 2. The admin adds a task and opens it for voting
	require.NoError(t, admin.WriteJSON(ClientMessage{Action: ActionAddTask, Title: "Login page"}))
	withTask := readState(t, admin, func(v StateView) bool { return len(v.Tasks) == 1 })
	taskID := withTask.Tasks[0].ID

	require.NoError(t, admin.WriteJSON(ClientMessage{Action: ActionStartVoting, TaskID: &taskID}))
	readState(t, admin, func(v StateView) bool { return v.ActiveTask != nil && v.ActiveTask.ID == taskID })
	readState(t, guest, func(v StateView) bool { return v.ActiveTask != nil && v.ActiveTask.ID == taskID })

	// 3. Both vote; values stay hidden before reveal
	five, eight := domain.NumberValue(5), domain.NumberValue(8)
	require.NoError(t, admin.WriteJSON(ClientMessage{Action: ActionVote, Value: &five}))
	require.NoError(t, guest.WriteJSON(ClientMessage{Action: ActionVote, Value: &eight}))

	hidden := readState(t, admin, func(v StateView) bool {
		return len(v.Participants) == 2 && v.Participants[0].Voted && v.Participants[1].Voted
	})
	for _, p := range hidden.Participants {
		assert.Nil(t, p.Value)
	}
	require.NotNil(t, hidden.Selected)
	assert.Equal(t, "5", hidden.Selected.Key())

	// 4. The guest cannot reveal; the admin can
	require.NoError(t, guest.WriteJSON(ClientMessage{Action: ActionReveal}))
	require.NoError(t, admin.WriteJSON(ClientMessage{Action: ActionReveal}))

	revealed := readState(t, guest, func(v StateView) bool { return v.Summary != nil })
	assert.Equal(t, 6.5, revealed.Summary.Average)
	assert.Equal(t, 2, revealed.Summary.Total)
	for _, p := range revealed.Participants {
		assert.NotNil(t, p.Value)
	}

	// 5. Reset closes the round for everyone
	require.NoError(t, admin.WriteJSON(ClientMessage{Action: ActionReset}))
	readState(t, guest, func(v StateView) bool { return v.ActiveTask == nil && v.Summary == nil })
}

func TestRoomSocket_Notices(t *testing.T) {
	app := setupTestApp(t)
	browser := app.newBrowser(t)
	created := app.createRoom(t, browser, map[string]any{"room_name": "R", "name": "Ana"})
	conn := app.dial(t, browser, created.Room.ID)

	readState(t, conn, func(StateView) bool { return true })

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "dance"}))
	data := readUntil(t, conn, func(typ string, _ json.RawMessage) bool { return typ == MessageNotice })
	var notice domain.Notice
	require.NoError(t, json.Unmarshal(data, &notice))
	assert.Equal(t, domain.NoticeError, notice.Level)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionAddTask, Title: "  "}))
	data = readUntil(t, conn, func(typ string, _ json.RawMessage) bool { return typ == MessageNotice })
	require.NoError(t, json.Unmarshal(data, &notice))
	assert.Equal(t, "Task title is required", notice.Message)
}

func TestRoomSocket_CloseReleasesSubscriptions(t *testing.T) {
	app := setupTestApp(t)
	browser := app.newBrowser(t)
	created := app.createRoom(t, browser, map[string]any{"room_name": "R", "name": "Ana"})

	conn := app.dial(t, browser, created.Room.ID)
	readState(t, conn, func(StateView) bool { return true })
	require.Equal(t, 3, app.Broker.Len())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return app.Broker.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestSessions(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	sessions := NewSessions("secret", true, "", clock)

	id := uuid.NewString()
	token, err := sessions.Issue(id)
	require.NoError(t, err)

	got, err := sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = NewSessions("other", true, "", clock).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	clock.Advance(400 * 24 * time.Hour)
	_, err = sessions.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessions_MiddlewareKeepsValidCookie(t *testing.T) {
	sessions := NewSessions("secret", false, "", nil)
	var seen string
	handler := sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	first := seen
	require.NotEmpty(t, first)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, first, seen)
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEqual(t, first, seen)
	assert.Len(t, rec.Result().Cookies(), 1)
}
