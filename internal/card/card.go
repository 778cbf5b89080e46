// Package card owns the forecast subscription state machine: two
// concurrent push streams (daily-like and hourly), the latest event from
// each, the active view, and the layout metrics derived from them.
package card

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/simonhale/forecastcard/internal/forecast"
	"github.com/simonhale/forecastcard/internal/layout"
	"github.com/simonhale/forecastcard/internal/metrics"
	"github.com/simonhale/forecastcard/internal/models"
)

// Unsubscribe tears down one forecast subscription.
type Unsubscribe func() error

// Host is the narrow interface to the home-automation host: synchronous
// entity reads and push-based forecast subscriptions.
type Host interface {
	EntityState(entityID string) *models.EntityState
	SubscribeForecast(ctx context.Context, entityID string, t forecast.Type, onEvent func(forecast.Event)) (Unsubscribe, error)
}

// Option configures optional card collaborators.
type Option func(*Card)

// WithNightResolver supplies the night-time function used for condition
// span grouping. Without it every instant counts as daytime.
func WithNightResolver(fn forecast.NightResolver) Option {
	return func(c *Card) { c.nightAt = fn }
}

// WithEventObserver registers a callback invoked for every live forecast
// event, after it has been stored in its slot. Used for persistence.
func WithEventObserver(fn func(forecast.Type, forecast.Event)) Option {
	return func(c *Card) { c.observer = fn }
}

// Card is one card instance. All state is guarded by mu; the host may
// deliver events from any goroutine.
type Card struct {
	host     Host
	cfg      Config
	nightAt  forecast.NightResolver
	observer func(forecast.Type, forecast.Event)

	mu             sync.Mutex
	gen            int
	subscribed     bool
	effectiveDaily forecast.Type
	activeType     forecast.Type
	dailyUnsub     Unsubscribe
	hourlyUnsub    Unsubscribe
	dailyEvent     *forecast.Event
	hourlyEvent    *forecast.Event
	dailyData      []forecast.Attribute
	hourlyData     []forecast.Attribute
	units          map[string]string
	layout         *layout.Engine
	layoutState    layout.State
	containerWidth float64
}

// New builds a card for the given host and configuration.
func New(host Host, cfg Config, opts ...Option) (*Card, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Card{
		host:       host,
		cfg:        cfg,
		activeType: cfg.DefaultForecast,
		layout:     layout.NewEngine(cfg.MinItemWidth),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subscribe resolves the effective daily-like granularity and opens both
// forecast streams. It is a no-op when forecasting is disabled, the entity
// is unknown, or the entity supports no forecast granularity; all of
// those are valid steady states. Safe to call again; existing
// subscriptions are torn down first.
//
// The card mutex is NOT held across the subscribe round-trips. The host
// delivers subscribe results and pushed events from one serialized read
// loop, and hosts push the initial forecast event right after each
// subscribe result; waiting for the second result under the mutex would
// block the read loop inside handleEvent forever. The two streams are
// opened concurrently for the same reason.
func (c *Card) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	c.unsubscribeLocked()

	if !c.cfg.ShowForecast {
		c.mu.Unlock()
		return nil
	}

	state := c.host.EntityState(c.cfg.Entity)
	if state == nil {
		c.mu.Unlock()
		return nil
	}

	features := state.SupportedFeatures()
	if !forecast.SupportsAnyType(features) {
		log.Printf("card: entity %s supports no forecast granularity", c.cfg.Entity)
		c.mu.Unlock()
		return nil
	}

	c.units = state.Units()
	c.effectiveDaily = forecast.DailyLikeType(features)

	// An entity that only does twice_daily renders it in the daily view.
	if c.effectiveDaily == forecast.TypeTwiceDaily && c.activeType == forecast.TypeDaily {
		c.activeType = forecast.TypeTwiceDaily
	}

	gen := c.gen
	effectiveDaily := c.effectiveDaily
	c.mu.Unlock()

	type streamResult struct {
		t     forecast.Type
		unsub Unsubscribe
		err   error
	}
	results := make(chan streamResult, 2)
	streams := 0
	if effectiveDaily != "" {
		streams++
		go func() {
			unsub, err := c.subscribeStream(ctx, effectiveDaily, gen)
			results <- streamResult{t: effectiveDaily, unsub: unsub, err: err}
		}()
	}
	if forecast.SupportsType(features, forecast.TypeHourly) {
		streams++
		go func() {
			unsub, err := c.subscribeStream(ctx, forecast.TypeHourly, gen)
			results <- streamResult{t: forecast.TypeHourly, unsub: unsub, err: err}
		}()
	}

	var dailyUnsub, hourlyUnsub Unsubscribe
	var firstErr error
	for i := 0; i < streams; i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		if res.t == forecast.TypeHourly {
			hourlyUnsub = res.unsub
		} else {
			dailyUnsub = res.unsub
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if firstErr != nil || gen != c.gen {
		// Failed, or torn down while the subscribes were in flight:
		// release whatever did open.
		discardStream(effectiveDaily, dailyUnsub)
		discardStream(forecast.TypeHourly, hourlyUnsub)
		return firstErr
	}
	c.dailyUnsub = dailyUnsub
	c.hourlyUnsub = hourlyUnsub
	c.subscribed = true
	return nil
}

// subscribeStream opens one forecast stream. An invalid-entity rejection
// yields a nil unsubscribe and no error; the stale slot is cleared after
// the configured delay instead. Runs without the card mutex so pushed
// events can be processed while the round-trip is in flight.
func (c *Card) subscribeStream(ctx context.Context, t forecast.Type, gen int) (Unsubscribe, error) {
	unsub, err := c.host.SubscribeForecast(ctx, c.cfg.Entity, t, func(ev forecast.Event) {
		c.handleEvent(t, gen, ev)
	})
	if err != nil {
		metrics.SubscribeErrors.WithLabelValues(string(t)).Inc()
		if models.IsInvalidEntity(err) {
			// Entity ids churn briefly during host reloads; clear the
			// stale event after a delay instead of surfacing an error.
			log.Printf("card: %s subscribe rejected for %s, clearing after %s", t, c.cfg.Entity, c.cfg.InvalidEntityClearDelay)
			time.AfterFunc(c.cfg.InvalidEntityClearDelay, func() {
				c.clearEvent(t, gen)
			})
			return nil, nil
		}
		return nil, err
	}
	return unsub, nil
}

func discardStream(t forecast.Type, unsub Unsubscribe) {
	if unsub == nil {
		return
	}
	go func() {
		if err := unsub(); err != nil {
			log.Printf("card: unsubscribe %s: %v", t, err)
		}
	}()
}

// Unsubscribe tears down both streams. Idempotent; teardown errors are
// logged, never returned, and one stream's failure does not block the
// other's.
func (c *Card) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribeLocked()
}

func (c *Card) unsubscribeLocked() {
	c.gen++
	for _, stream := range []struct {
		t     forecast.Type
		unsub Unsubscribe
	}{
		{c.effectiveDailyOrDefaultLocked(), c.dailyUnsub},
		{forecast.TypeHourly, c.hourlyUnsub},
	} {
		if stream.unsub == nil {
			continue
		}
		go func(t forecast.Type, unsub Unsubscribe) {
			if err := unsub(); err != nil {
				log.Printf("card: unsubscribe %s: %v", t, err)
			}
		}(stream.t, stream.unsub)
	}
	c.dailyUnsub, c.hourlyUnsub = nil, nil
	// Clearing the slots makes any stray late callback observe a
	// torn-down configuration and no-op.
	c.dailyEvent, c.hourlyEvent = nil, nil
	c.subscribed = false
}

func (c *Card) clearEvent(t forecast.Type, gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if t == forecast.TypeHourly {
		c.hourlyEvent = nil
		c.hourlyData = nil
	} else {
		c.dailyEvent = nil
		c.dailyData = nil
	}
}

func (c *Card) handleEvent(t forecast.Type, gen int, ev forecast.Event) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if t == forecast.TypeHourly {
		c.hourlyEvent = &ev
	} else {
		c.dailyEvent = &ev
	}
	metrics.ForecastEventsReceived.WithLabelValues(string(t)).Inc()
	observer := c.observer
	c.reprocessLocked()
	c.mu.Unlock()

	// Persistence runs after the lock is released; a slow write must not
	// stall card accessors.
	if observer != nil {
		observer(t, ev)
	}
}

// SeedEvent replays a persisted forecast event through the same processing
// path as a live one, without notifying the event observer. A slot that
// already holds a live event is left alone, so replay after Subscribe can
// never shadow fresher data.
func (c *Card) SeedEvent(ev forecast.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Type == forecast.TypeHourly {
		if c.hourlyEvent != nil {
			return
		}
		c.hourlyEvent = &ev
	} else {
		if c.dailyEvent != nil {
			return
		}
		c.dailyEvent = &ev
	}
	c.reprocessLocked()
}

// EntityUpdated is called when the entity's state changes. A change in any
// display-unit attribute forces a resubscribe since cached forecast values
// may be stale in the old unit.
func (c *Card) EntityUpdated(ctx context.Context) error {
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return nil
	}
	state := c.host.EntityState(c.cfg.Entity)
	if state == nil {
		c.mu.Unlock()
		return nil
	}
	changed := unitsChanged(c.units, state.Units())
	c.mu.Unlock()

	if !changed {
		c.mu.Lock()
		c.reprocessLocked()
		c.mu.Unlock()
		return nil
	}
	log.Printf("card: display units changed for %s, resubscribing", c.cfg.Entity)
	return c.Subscribe(ctx)
}

func unitsChanged(old, new map[string]string) bool {
	if len(old) != len(new) {
		return true
	}
	for k, v := range new {
		if old[k] != v {
			return true
		}
	}
	return false
}

func (c *Card) reprocessLocked() {
	if c.dailyEvent == nil && c.hourlyEvent == nil {
		return
	}
	state := c.host.EntityState(c.cfg.Entity)
	if state == nil || state.Attributes == nil {
		return
	}
	metrics.ReprocessRuns.Inc()

	oldHourlyLen := len(c.hourlyData)
	oldDailyLen := len(c.dailyData)

	features := state.SupportedFeatures()
	effectiveDaily := forecast.DailyLikeType(features)

	hourlyData := forecast.Normalize(state.Attributes, c.hourlyEvent, forecast.TypeHourly)
	dailyData := forecast.Normalize(state.Attributes, c.dailyEvent, effectiveDaily)
	if hourlyData == nil && dailyData == nil {
		return
	}

	c.dailyData = dailyData
	if c.cfg.DailySlots > 0 && len(c.dailyData) > c.cfg.DailySlots {
		c.dailyData = c.dailyData[:c.cfg.DailySlots]
	}

	if c.cfg.HourlyGroupSize > 1 && hourlyData != nil {
		hourlyData = forecast.Aggregate(hourlyData, c.cfg.HourlyGroupSize)
	}
	c.hourlyData = hourlyData
	if c.cfg.HourlySlots > 0 && len(c.hourlyData) > c.cfg.HourlySlots {
		c.hourlyData = c.hourlyData[:c.cfg.HourlySlots]
	}

	dailyLabel := effectiveDaily
	if dailyLabel == "" {
		dailyLabel = forecast.TypeDaily
	}
	metrics.ForecastItems.WithLabelValues(string(forecast.TypeHourly)).Set(float64(len(c.hourlyData)))
	metrics.ForecastItems.WithLabelValues(string(dailyLabel)).Set(float64(len(c.dailyData)))

	// Auto-switch when the active view came up empty, but not while the
	// preferred stream may simply still be loading: require either both
	// streams delivered, or the active type being structurally
	// unsupported by the entity.
	if len(c.currentForecastLocked()) == 0 {
		hasBothEvents := c.dailyEvent != nil && c.hourlyEvent != nil
		inDailyLikeView := forecast.IsDailyLike(c.activeType)
		shouldSwitch := hasBothEvents ||
			(c.activeType == forecast.TypeHourly && !forecast.SupportsType(features, forecast.TypeHourly)) ||
			(inDailyLikeView && effectiveDaily == "")

		if shouldSwitch {
			if c.activeType == forecast.TypeHourly && len(c.dailyData) > 0 {
				target := effectiveDaily
				if target == "" {
					target = forecast.TypeDaily
				}
				log.Printf("card: no hourly forecast data, switching to %s", target)
				metrics.AutoSwitches.WithLabelValues(string(forecast.TypeHourly), string(target)).Inc()
				c.activeType = target
			} else if inDailyLikeView && len(c.hourlyData) > 0 {
				log.Printf("card: no %s forecast data, switching to hourly", c.activeType)
				metrics.AutoSwitches.WithLabelValues(string(c.activeType), string(forecast.TypeHourly)).Inc()
				c.activeType = forecast.TypeHourly
			}
		}
	}

	newLen := len(c.currentForecastLocked())
	oldLen := oldDailyLen
	if c.activeType == forecast.TypeHourly {
		oldLen = oldHourlyLen
	}
	if newLen != oldLen && c.containerWidth > 0 {
		c.layoutState = c.layout.Layout(c.containerWidth, newLen)
	}
}

// ToggleView swaps between the hourly and the effective daily-like view.
// It refuses, leaving the active type unchanged, when the target view
// has no items. Returns the resulting active type.
func (c *Card) ToggleView() forecast.Type {
	c.mu.Lock()
	defer c.mu.Unlock()

	inDailyLikeView := forecast.IsDailyLike(c.activeType)
	target := c.dailyData
	if inDailyLikeView {
		target = c.hourlyData
	}
	if len(target) == 0 {
		log.Printf("card: not toggling, target view has no data")
		return c.activeType
	}

	if inDailyLikeView {
		c.activeType = forecast.TypeHourly
	} else {
		c.activeType = c.effectiveDailyOrDefaultLocked()
	}

	if c.containerWidth > 0 {
		c.layoutState = c.layout.Layout(c.containerWidth, len(c.currentForecastLocked()))
	}
	return c.activeType
}

func (c *Card) effectiveDailyOrDefaultLocked() forecast.Type {
	if c.effectiveDaily != "" {
		return c.effectiveDaily
	}
	return forecast.TypeDaily
}

// RecomputeLayout recalculates item metrics for a new container width.
// Non-positive widths (transient zero-width measurement frames) keep the
// previous metrics.
func (c *Card) RecomputeLayout(containerWidth float64) layout.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if containerWidth > 0 {
		c.containerWidth = containerWidth
	}
	c.layoutState = c.layout.Layout(containerWidth, len(c.currentForecastLocked()))
	return c.layoutState
}

func (c *Card) currentForecastLocked() []forecast.Attribute {
	if c.activeType == forecast.TypeHourly {
		return c.hourlyData
	}
	return c.dailyData
}

// ActiveType returns the currently active forecast view.
func (c *Card) ActiveType() forecast.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeType
}

// EffectiveDailyType returns the granularity filling the daily-like role,
// or "" when the entity supports none.
func (c *Card) EffectiveDailyType() forecast.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveDaily
}

// HourlyForecast returns the processed hourly sequence; nil means the
// stream has not delivered.
func (c *Card) HourlyForecast() []forecast.Attribute {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hourlyData
}

// DailyForecast returns the processed daily-like sequence; nil means the
// stream has not delivered.
func (c *Card) DailyForecast() []forecast.Attribute {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dailyData
}

// Layout returns the current layout metrics.
func (c *Card) Layout() layout.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layoutState
}

// ConditionSpans groups the active sequence's consecutive equal night-aware
// conditions for icon rendering.
func (c *Card) ConditionSpans() []forecast.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return forecast.GroupByCondition(c.currentForecastLocked(), c.nightAt)
}

// IndexForDate finds the active-sequence index whose sample falls on the
// same calendar day as the given instant, falling back to the last index.
// Returns -1 for an empty sequence. Multiplied by the item width this is
// the scroll offset for scroll-to-selected.
func (c *Card) IndexForDate(at time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.currentForecastLocked()
	if len(seq) == 0 {
		return -1
	}
	y, m, d := at.Date()
	for i, sample := range seq {
		sy, sm, sd := sample.Datetime.Date()
		if sy == y && sm == m && sd == d {
			return i
		}
	}
	return len(seq) - 1
}

// Snapshot is the card's reactive surface in one struct.
type Snapshot struct {
	Entity             string               `json:"entity"`
	ActiveType         forecast.Type        `json:"active_type"`
	EffectiveDailyType forecast.Type        `json:"effective_daily_type,omitempty"`
	Hourly             []forecast.Attribute `json:"hourly,omitempty"`
	Daily              []forecast.Attribute `json:"daily,omitempty"`
	ConditionSpans     []forecast.Span      `json:"condition_spans,omitempty"`
	Layout             layout.State         `json:"layout"`
}

// Snapshot returns the current reactive fields.
func (c *Card) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Entity:             c.cfg.Entity,
		ActiveType:         c.activeType,
		EffectiveDailyType: c.effectiveDaily,
		Hourly:             c.hourlyData,
		Daily:              c.dailyData,
		ConditionSpans:     forecast.GroupByCondition(c.currentForecastLocked(), c.nightAt),
		Layout:             c.layoutState,
	}
}
