package card

import (
	"fmt"
	"time"

	"github.com/simonhale/forecastcard/internal/forecast"
)

// Config is the validated configuration surface of one card instance.
type Config struct {
	// Entity is the weather entity the card follows. Required.
	Entity string

	// ShowForecast disables both subscriptions when false.
	ShowForecast bool

	// DefaultForecast is the initially active view, hourly or daily.
	DefaultForecast forecast.Type

	// HourlyGroupSize buckets consecutive hourly samples; 1 disables grouping.
	HourlyGroupSize int

	// HourlySlots and DailySlots cap the processed sequences, keeping the
	// earliest N items. Zero means uncapped.
	HourlySlots int
	DailySlots  int

	// ShowSunTimes enables sunrise/sunset slot classification.
	ShowSunTimes bool

	// MinItemWidth is the narrowest a forecast slot may render, in pixels.
	MinItemWidth float64

	// InvalidEntityClearDelay is how long to wait before clearing a
	// stream's latest event after an invalid-entity subscribe rejection.
	// A heuristic against entity-id churn during host reloads, not a
	// correctness guarantee.
	InvalidEntityClearDelay time.Duration
}

// DefaultConfig returns the card defaults for the given entity.
func DefaultConfig(entity string) Config {
	return Config{
		Entity:                  entity,
		ShowForecast:            true,
		DefaultForecast:         forecast.TypeDaily,
		HourlyGroupSize:         1,
		ShowSunTimes:            true,
		MinItemWidth:            60,
		InvalidEntityClearDelay: 2 * time.Second,
	}
}

// Validate checks invariants and fills unset fields with defaults.
func (c *Config) Validate() error {
	if c.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if c.HourlySlots < 0 {
		return fmt.Errorf("hourly_slots must be greater than 0")
	}
	if c.DailySlots < 0 {
		return fmt.Errorf("daily_slots must be greater than 0")
	}
	if c.HourlyGroupSize < 0 {
		return fmt.Errorf("hourly_group_size must be at least 1")
	}
	if c.HourlyGroupSize == 0 {
		c.HourlyGroupSize = 1
	}
	switch c.DefaultForecast {
	case "":
		c.DefaultForecast = forecast.TypeDaily
	case forecast.TypeHourly, forecast.TypeDaily:
	default:
		return fmt.Errorf("default_forecast must be hourly or daily, got %q", c.DefaultForecast)
	}
	if c.MinItemWidth <= 0 {
		c.MinItemWidth = 60
	}
	if c.InvalidEntityClearDelay <= 0 {
		c.InvalidEntityClearDelay = 2 * time.Second
	}
	return nil
}
