package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Event types pushed to connected clients.
const (
	EventSectionChanged = "section_changed"
	EventSaveStatus     = "save_status"
	EventModeChanged    = "mode_changed"
)

// Event is one change in a patient's intake session.
type Event struct {
	Type      string    `json:"type"`
	PatientID string    `json:"patient_id"`
	Section   string    `json:"section,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher accepts session events. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// Conn abstracts the websocket connection for testing.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection following a single patient.
type Client struct {
	ID        string
	PatientID string
	Send      chan []byte
	hub       *Hub
	conn      Conn
}

// Hub fans events out to the clients following each patient.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	patients map[string]map[string]*Client
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		patients: make(map[string]map[string]*Client),
		logger:   logger.With().Str("component", "events").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if h.patients[client.PatientID] == nil {
		h.patients[client.PatientID] = make(map[string]*Client)
	}
	h.patients[client.PatientID][client.ID] = client
}

// Unregister removes the client and closes its send channel. Unknown clients
// are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if subs, ok := h.patients[client.PatientID]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.patients, client.PatientID)
		}
	}
	close(client.Send)
}

// Publish sends e to every client following e.PatientID. Clients whose
// buffer is full miss the event.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error().Err(err).Str("type", e.Type).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.patients[e.PatientID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("patient_id", e.PatientID).Msg("client buffer full, dropping event")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PatientCount returns the number of clients following patientID.
func (h *Hub) PatientCount(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.patients[patientID])
}

// CloseAll unregisters every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.Unregister(c)
	}
}

// Handler upgrades /patients/:patient_id/events requests to websocket
// connections registered with the hub.
type Handler struct {
	hub      *Hub
	validate func(patientID string) error
	upgrader gorillawebsocket.Upgrader
}

// NewHandler returns a handler for hub. validate, when set, rejects unknown
// or malformed patient ids with a 400 before the upgrade.
func NewHandler(hub *Hub, validate func(string) error) *Handler {
	return &Handler{
		hub:      hub,
		validate: validate,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) HandleConnect(c echo.Context) error {
	patientID := c.Param("patient_id")
	if h.validate != nil {
		if err := h.validate(patientID); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:        uuid.New().String(),
		PatientID: patientID,
		Send:      make(chan []byte, 64),
		hub:       h.hub,
		conn:      &gorillaConnAdapter{conn: ws},
	}
	h.hub.Register(client)
	h.hub.logger.Debug().Str("client_id", client.ID).Str("patient_id", patientID).Msg("client connected")

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// readPump drains the connection until the client goes away. The feed is
// one-way so incoming messages are discarded.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
		h.hub.logger.Debug().Str("client_id", client.ID).Msg("client disconnected")
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(client *Client) {
	for msg := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
			h.hub.logger.Debug().Err(err).Str("client_id", client.ID).Msg("write failed")
			client.conn.Close()
			return
		}
	}
	client.conn.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
}

type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
