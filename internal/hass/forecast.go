package hass

import (
	"context"
	"fmt"
	"log"

	"github.com/tidwall/gjson"

	"github.com/simonhale/forecastcard/internal/card"
	"github.com/simonhale/forecastcard/internal/forecast"
	"github.com/simonhale/forecastcard/internal/models"
)

// SubscribeForecast opens a weather/subscribe_forecast push stream for one
// entity and granularity. An unknown entity ID maps to
// models.InvalidEntityError so callers can treat it as transient churn.
func (c *Client) SubscribeForecast(ctx context.Context, entityID string, t forecast.Type, onEvent func(forecast.Event)) (card.Unsubscribe, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan result, 1)
	c.pending[id] = ch
	c.handlers[id] = func(event gjson.Result) {
		ev, err := forecast.ParseEvent([]byte(event.Raw))
		if err != nil {
			log.Printf("hass: bad forecast event for %s: %v", entityID, err)
			return
		}
		onEvent(*ev)
	}
	c.mu.Unlock()

	payload := map[string]any{
		"id":            id,
		"type":          "weather/subscribe_forecast",
		"entity_id":     entityID,
		"forecast_type": string(t),
	}
	if err := c.write(payload); err != nil {
		c.dropSubscription(id)
		return nil, err
	}

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.dropSubscription(id)
		return nil, ctx.Err()
	case <-c.done:
		c.dropSubscription(id)
		return nil, fmt.Errorf("connection closed")
	}

	if !res.success {
		c.dropSubscription(id)
		if res.errCode == "invalid_entity_id" || res.errCode == "not_found" {
			return nil, &models.InvalidEntityError{EntityID: entityID}
		}
		return nil, fmt.Errorf("subscribe %s forecast for %s: %s: %s", t, entityID, res.errCode, res.errMsg)
	}

	unsub := func() error {
		c.dropSubscription(id)
		res, err := c.call(context.Background(), map[string]any{
			"type":         "unsubscribe_events",
			"subscription": id,
		})
		if err != nil {
			return err
		}
		if !res.success {
			return fmt.Errorf("unsubscribe %d: %s: %s", id, res.errCode, res.errMsg)
		}
		return nil
	}
	return unsub, nil
}

func (c *Client) dropSubscription(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	delete(c.handlers, id)
	c.mu.Unlock()
}
