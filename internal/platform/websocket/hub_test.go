package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newClient(hub *Hub, id, patientID string, buf int) *Client {
	return &Client{ID: id, PatientID: patientID, Send: make(chan []byte, buf), hub: hub}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(hub, "client-1", "p-1", 8)

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.PatientCount("p-1") != 1 {
		t.Fatalf("expected 1 client on p-1, got %d", hub.PatientCount("p-1"))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.PatientCount("p-1") != 0 {
		t.Fatalf("expected empty hub, got %d clients", hub.ClientCount())
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed after unregister")
	}

	// a second unregister must not panic on the closed channel
	hub.Unregister(client)
}

func TestHub_PublishOnlyReachesPatient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := newClient(hub, "a", "p-1", 8)
	b := newClient(hub, "b", "p-2", 8)
	hub.Register(a)
	hub.Register(b)

	hub.Publish(Event{Type: EventSectionChanged, PatientID: "p-1", Section: "past_history"})

	select {
	case msg := <-a.Send:
		var got Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if got.Type != EventSectionChanged || got.Section != "past_history" {
			t.Errorf("unexpected event: %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Error("expected timestamp to be filled in")
		}
	default:
		t.Fatal("expected client a to receive the event")
	}

	select {
	case msg := <-b.Send:
		t.Fatalf("client b should not receive p-1 events, got %s", msg)
	default:
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(hub, "slow", "p-1", 1)
	hub.Register(client)

	hub.Publish(Event{Type: EventSaveStatus, PatientID: "p-1", Status: "saving"})
	hub.Publish(Event{Type: EventSaveStatus, PatientID: "p-1", Status: "saved"})

	if len(client.Send) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(client.Send))
	}
	var got Event
	json.Unmarshal(<-client.Send, &got)
	if got.Status != "saving" {
		t.Errorf("expected the first event to be kept, got %s", got.Status)
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Publish(Event{Type: EventModeChanged, PatientID: "nobody"})
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	for i := 0; i < 3; i++ {
		hub.Register(newClient(hub, fmt.Sprintf("c-%d", i), "p-1", 1))
	}
	hub.CloseAll()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	const n = 50

	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newClient(hub, fmt.Sprintf("c-%d", i), "p-1", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
		go func() {
			defer wg.Done()
			hub.Publish(Event{Type: EventSectionChanged, PatientID: "p-1"})
		}()
	}
	wg.Wait()

	if hub.PatientCount("p-1") != n {
		t.Fatalf("expected %d clients, got %d", n, hub.PatientCount("p-1"))
	}
}

func TestHandler_RejectsInvalidPatient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub, func(string) error { return errors.New("invalid patient id") })

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/patients/bad/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("bad")

	err := handler.HandleConnect(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Fatal("rejected request registered a client")
	}
}

func TestHandler_RequiresWebSocket(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/patients/p-1/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("p-1")

	err := handler.HandleConnect(c)
	if err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func TestHandler_StreamsPatientEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub, nil)

	e := echo.New()
	e.GET("/patients/:patient_id/events", handler.HandleConnect)
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/patients/p-ws/events"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.PatientCount("p-ws") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(Event{Type: EventSaveStatus, PatientID: "p-ws", Section: "obstetric", Status: "saved"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if got.Type != EventSaveStatus || got.Status != "saved" || got.Section != "obstetric" {
		t.Fatalf("unexpected event: %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
