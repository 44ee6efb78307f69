package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
	"github.com/vncsmyrnk/pokeplan/internal/core/services"
)

type SocketConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

const (
	ActionVote        = "vote"
	ActionReveal      = "reveal"
	ActionReset       = "reset"
	ActionStartVoting = "start_voting"
	ActionAddTask     = "add_task"
	ActionUpdateTask  = "update_task"
	ActionDeleteTask  = "delete_task"

	MessageState  = "state"
	MessageNotice = "notice"
)

var errUnknownAction = errors.New("unknown action")

type ClientMessage struct {
	Action      string            `json:"action"`
	Value       *domain.CardValue `json:"value,omitempty"`
	TaskID      *uuid.UUID        `json:"task_id,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StateView is what a participant sees of the room. Vote values stay hidden
// until the room is revealed.
type StateView struct {
	Room         *domain.Room               `json:"room"`
	Me           domain.Identity            `json:"me"`
	Participants []domain.ParticipantStatus `json:"participants"`
	Tasks        []domain.Task              `json:"tasks"`
	ActiveTask   *domain.Task               `json:"active_task"`
	Selected     *domain.CardValue          `json:"selected"`
	Summary      *domain.VotingSummary      `json:"summary"`
	ShareLink    string                     `json:"share_link"`
}

func NewStateView(state domain.RoomState, me domain.Identity, shareLink string) StateView {
	view := StateView{
		Room:         state.Room,
		Me:           me,
		Participants: state.ParticipantStatuses(),
		Tasks:        state.Tasks,
		Selected:     state.Selected,
		Summary:      state.Summary,
		ShareLink:    shareLink,
	}
	if task, ok := state.ActiveTask(); ok {
		view.ActiveTask = &task
	}
	return view
}

// RoomSocketHandler serves one room view per WebSocket connection.
type RoomSocketHandler struct {
	deps       services.RoomViewDeps
	identities ports.IdentityDirectory
	baseURL    string
	config     SocketConfig
	upgrader   websocket.Upgrader
}

// NewRoomSocketHandler takes Store, Feed and Clock from deps; Notifier and
// OnUpdate are set per connection.
func NewRoomSocketHandler(deps services.RoomViewDeps, identities ports.IdentityDirectory, baseURL string, config SocketConfig) *RoomSocketHandler {
	return &RoomSocketHandler{
		deps:       deps,
		identities: identities,
		baseURL:    baseURL,
		config:     config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

func (h *RoomSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}
	sessionID, _ := SessionID(r.Context())

	client := newRoomClient(h.config, services.ShareLink(h.baseURL, roomID))
	deps := h.deps
	deps.Notifier = client
	deps.OnUpdate = client.update

	view, err := services.OpenRoomView(r.Context(), deps, roomID, h.identities.ForSession(sessionID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	client.me = view.Identity()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to upgrade WebSocket connection")
		view.Close()
		return
	}
	client.conn = conn

	logger := log.With().
		Str("room_id", roomID.String()).
		Str("participant_id", client.me.ID.String()).
		Logger()
	logger.Info().Msg("room view opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump()
	}()
	go func() {
		select {
		case <-view.Done():
			logger.Warn().Err(view.Err()).Msg("room feed ended, closing connection")
			conn.Close()
		case <-ctx.Done():
		}
	}()

	client.readPump(ctx, view.Controller())

	cancel()
	view.Close()
	client.shutdown()
	<-writerDone
	conn.Close()
	logger.Info().Msg("room view closed")
}

type roomClient struct {
	config    SocketConfig
	conn      *websocket.Conn
	me        domain.Identity
	shareLink string

	mu     sync.Mutex
	latest *domain.RoomState

	stateReady chan struct{}
	notices    chan domain.Notice
	closed     chan struct{}
	closeOnce  sync.Once
}

func newRoomClient(config SocketConfig, shareLink string) *roomClient {
	return &roomClient{
		config:     config,
		shareLink:  shareLink,
		stateReady: make(chan struct{}, 1),
		notices:    make(chan domain.Notice, 16),
		closed:     make(chan struct{}),
	}
}

// update keeps only the newest state; a slow socket skips intermediate ones.
func (c *roomClient) update(state domain.RoomState) {
	c.mu.Lock()
	c.latest = &state
	c.mu.Unlock()

	select {
	case c.stateReady <- struct{}{}:
	default:
	}
}

func (c *roomClient) Notify(_ context.Context, notice domain.Notice) {
	select {
	case c.notices <- notice:
	default:
		log.Warn().Str("message", notice.Message).Msg("notice queue full, dropping notice")
	}
}

func (c *roomClient) shutdown() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *roomClient) readPump(ctx context.Context, controller *services.RoomController) {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("WebSocket read failed")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Notify(ctx, domain.ErrorNotice("Invalid message"))
			continue
		}
		if err := dispatch(ctx, controller, c, msg); err != nil {
			log.Debug().Err(err).Str("action", msg.Action).Msg("room action failed")
		}
	}
}

// dispatch runs one client action. Failed writes have already been reported
// to the participant by the controller.
func dispatch(ctx context.Context, controller *services.RoomController, notifier ports.Notifier, msg ClientMessage) error {
	invalid := func(message string, err error) error {
		notifier.Notify(ctx, domain.ErrorNotice(message))
		return err
	}

	switch msg.Action {
	case ActionVote:
		if msg.Value == nil {
			return invalid("A card value is required", domain.ErrInvalidVoteValue)
		}
		return controller.CastVote(ctx, *msg.Value)
	case ActionReveal:
		return controller.Reveal(ctx)
	case ActionReset:
		return controller.ResetVoting(ctx)
	case ActionStartVoting:
		if msg.TaskID == nil {
			return invalid("A task is required", domain.ErrInvalidTaskID)
		}
		return controller.StartVoting(ctx, *msg.TaskID)
	case ActionAddTask:
		_, err := controller.AddTask(ctx, msg.Title, msg.Description)
		return err
	case ActionUpdateTask:
		if msg.TaskID == nil {
			return invalid("A task is required", domain.ErrInvalidTaskID)
		}
		return controller.UpdateTask(ctx, domain.Task{ID: *msg.TaskID, Title: msg.Title, Description: msg.Description})
	case ActionDeleteTask:
		if msg.TaskID == nil {
			return invalid("A task is required", domain.ErrInvalidTaskID)
		}
		return controller.DeleteTask(ctx, *msg.TaskID)
	default:
		return invalid("Unknown action", errUnknownAction)
	}
}

// writePump owns every write to the connection. It closes the connection on
// a failed write so that readPump returns too.
func (c *roomClient) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.stateReady:
			c.mu.Lock()
			state := c.latest
			c.mu.Unlock()
			if state == nil {
				continue
			}
			if err := c.write(ServerMessage{Type: MessageState, Data: NewStateView(*state, c.me, c.shareLink)}); err != nil {
				return
			}

		case notice := <-c.notices:
			if err := c.write(ServerMessage{Type: MessageNotice, Data: notice}); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *roomClient) write(msg ServerMessage) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("WebSocket write failed")
		return err
	}
	return nil
}
