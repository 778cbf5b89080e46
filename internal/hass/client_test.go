package hass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simonhale/forecastcard/internal/forecast"
	"github.com/simonhale/forecastcard/internal/models"
)

const testToken = "llat-test-token"

// fakeHA speaks just enough of the Home Assistant WebSocket protocol for
// the client: auth handshake, get_states, subscribe_events,
// weather/subscribe_forecast, unsubscribe_events.
type fakeHA struct {
	t        *testing.T
	upgrader websocket.Upgrader

	// pushStateChanged, when non-nil, receives the subscribe_events
	// subscription ID so the test can push state_changed events.
	pushStateChanged chan pushTarget
}

type pushTarget struct {
	conn *websocket.Conn
	id   int64
}

func (f *fakeHA) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2024.6.0"})

	var auth map[string]any
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if auth["access_token"] != testToken {
		conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		return
	}
	conn.WriteJSON(map[string]any{"type": "auth_ok", "ha_version": "2024.6.0"})

	for {
		var cmd map[string]any
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		id := int64(cmd["id"].(float64))

		switch cmd["type"] {
		case "get_states":
			conn.WriteJSON(map[string]any{
				"id": id, "type": "result", "success": true,
				"result": []map[string]any{
					{
						"entity_id": "weather.home",
						"state":     "sunny",
						"attributes": map[string]any{
							"supported_features": 3,
							"temperature_unit":   "°C",
						},
					},
				},
			})
		case "subscribe_events":
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true})
			if f.pushStateChanged != nil {
				f.pushStateChanged <- pushTarget{conn: conn, id: id}
			}
		case "weather/subscribe_forecast":
			if cmd["entity_id"] == "weather.missing" {
				conn.WriteJSON(map[string]any{
					"id": id, "type": "result", "success": false,
					"error": map[string]any{"code": "invalid_entity_id", "message": "Entity not found"},
				})
				continue
			}
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true})
			conn.WriteJSON(map[string]any{
				"id": id, "type": "event",
				"event": map[string]any{
					"type": cmd["forecast_type"],
					"forecast": []map[string]any{
						{"datetime": "2024-06-01T10:00:00+00:00", "temperature": 21.5, "condition": "sunny"},
						{"datetime": "2024-06-01T11:00:00+00:00", "temperature": 22.0, "condition": "cloudy"},
					},
				},
			})
		case "unsubscribe_events":
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true})
		}
	}
}

func startFakeHA(t *testing.T, fake *fakeHA) string {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connectTestClient(t *testing.T, fake *fakeHA) *Client {
	t.Helper()
	c := NewClient(startFakeHA(t, fake), testToken)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestConnectPrimesStateCache(t *testing.T) {
	c := connectTestClient(t, &fakeHA{})

	st := c.EntityState("weather.home")
	if st == nil {
		t.Fatal("weather.home not in state cache")
	}
	if st.State != "sunny" {
		t.Errorf("state = %q, want sunny", st.State)
	}
	if got := st.SupportedFeatures(); got != 3 {
		t.Errorf("supported features = %d, want 3", got)
	}
	if c.EntityState("weather.elsewhere") != nil {
		t.Error("unknown entity should be nil")
	}
}

func TestConnectRejectedToken(t *testing.T) {
	url := startFakeHA(t, &fakeHA{})
	c := NewClient(url, "wrong-token")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected auth error")
	}
}

func TestSubscribeForecastDeliversEvents(t *testing.T) {
	c := connectTestClient(t, &fakeHA{})

	events := make(chan forecast.Event, 1)
	unsub, err := c.SubscribeForecast(context.Background(), "weather.home", forecast.TypeHourly, func(ev forecast.Event) {
		events <- ev
	})
	if err != nil {
		t.Fatalf("SubscribeForecast: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != forecast.TypeHourly {
			t.Errorf("event type = %q, want hourly", ev.Type)
		}
		if len(ev.Forecast) != 2 {
			t.Errorf("samples = %d, want 2", len(ev.Forecast))
		}
		if len(ev.Raw) == 0 {
			t.Error("event raw payload not retained")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no forecast event delivered")
	}

	if err := unsub(); err != nil {
		t.Errorf("unsubscribe: %v", err)
	}
}

func TestSubscribeForecastInvalidEntity(t *testing.T) {
	c := connectTestClient(t, &fakeHA{})

	_, err := c.SubscribeForecast(context.Background(), "weather.missing", forecast.TypeDaily, func(forecast.Event) {})
	if err == nil {
		t.Fatal("expected error")
	}
	if !models.IsInvalidEntity(err) {
		t.Errorf("error %v not classified as invalid entity", err)
	}
}

func TestStateChangedUpdatesCache(t *testing.T) {
	fake := &fakeHA{pushStateChanged: make(chan pushTarget, 1)}
	c := connectTestClient(t, fake)

	changed := make(chan string, 1)
	c.OnEntityChange(func(entityID string) { changed <- entityID })

	target := <-fake.pushStateChanged
	target.conn.WriteJSON(map[string]any{
		"id": target.id, "type": "event",
		"event": map[string]any{
			"event_type": "state_changed",
			"data": map[string]any{
				"entity_id": "weather.home",
				"new_state": map[string]any{
					"entity_id": "weather.home",
					"state":     "rainy",
					"attributes": map[string]any{
						"supported_features": 3,
						"temperature_unit":   "°F",
					},
				},
			},
		},
	})

	select {
	case id := <-changed:
		if id != "weather.home" {
			t.Errorf("changed entity = %q, want weather.home", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	st := c.EntityState("weather.home")
	if st == nil || st.State != "rainy" {
		t.Fatalf("cache not updated: %+v", st)
	}
	if st.Units()["temperature_unit"] != "°F" {
		t.Errorf("units = %v, want °F", st.Units())
	}

	// A removed entity drops out of the cache.
	target.conn.WriteJSON(map[string]any{
		"id": target.id, "type": "event",
		"event": map[string]any{
			"event_type": "state_changed",
			"data": map[string]any{
				"entity_id": "weather.home",
				"new_state": nil,
			},
		},
	})
	deadline := time.Now().Add(5 * time.Second)
	for c.EntityState("weather.home") != nil {
		if time.Now().After(deadline) {
			t.Fatal("removed entity still cached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
