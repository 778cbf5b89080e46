package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"

	"github.com/simonhale/forecastcard/internal/api"
	"github.com/simonhale/forecastcard/internal/card"
	"github.com/simonhale/forecastcard/internal/forecast"
	"github.com/simonhale/forecastcard/internal/hass"
	"github.com/simonhale/forecastcard/internal/metrics"
	"github.com/simonhale/forecastcard/internal/models"
	"github.com/simonhale/forecastcard/internal/store"
	"github.com/simonhale/forecastcard/internal/suntimes"
	"github.com/simonhale/forecastcard/internal/timefmt"
)

type cli struct {
	HassURL   string `name:"hass-url" env:"HASS_URL" default:"ws://homeassistant.local:8123/api/websocket" help:"Home Assistant WebSocket endpoint."`
	HassToken string `name:"hass-token" env:"HASS_TOKEN" required:"" help:"Long-lived access token."`
	Entity    string `env:"WEATHER_ENTITY" required:"" help:"Weather entity to follow."`

	Port string `env:"PORT" default:"8080" help:"HTTP listen port."`
	DB   string `env:"DB_PATH" default:"data/forecastcard.db" help:"Path to SQLite database."`

	DefaultForecast string  `env:"DEFAULT_FORECAST" default:"daily" enum:"daily,hourly" help:"Initially active forecast view."`
	HourlyGroupSize int     `env:"HOURLY_GROUP_SIZE" default:"1" help:"Bucket size for hourly sample grouping."`
	HourlySlots     int     `env:"HOURLY_SLOTS" default:"0" help:"Cap on hourly items, 0 for uncapped."`
	DailySlots      int     `env:"DAILY_SLOTS" default:"0" help:"Cap on daily items, 0 for uncapped."`
	MinItemWidth    float64 `env:"MIN_ITEM_WIDTH" default:"60" help:"Narrowest rendered slot width in pixels."`

	ShowSunTimes bool    `env:"SHOW_SUN_TIMES" default:"true" negatable:"" help:"Mark sunrise and sunset slots."`
	Latitude     float64 `env:"LATITUDE" default:"0" help:"Site latitude for sun geometry."`
	Longitude    float64 `env:"LONGITUDE" default:"0" help:"Site longitude for sun geometry."`

	Locale     string `env:"LOCALE" default:"en" help:"BCP-47 locale for labels."`
	TimeFormat string `env:"TIME_FORMAT" default:"language" enum:"12,24,language" help:"Clock format preference."`

	RetainEventLog time.Duration `env:"RETAIN_EVENT_LOG" default:"168h" help:"Event log retention window."`
}

func main() {
	var flags cli
	kong.Parse(&flags,
		kong.Name("forecastcard"),
		kong.Description("Weather forecast card engine backed by Home Assistant."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	if removed, err := st.PruneEventLog(flags.RetainEventLog); err != nil {
		log.Printf("prune event log: %v", err)
	} else if removed > 0 {
		log.Printf("pruned %d event log rows", removed)
	}

	cfg := card.DefaultConfig(flags.Entity)
	cfg.DefaultForecast = forecast.Type(flags.DefaultForecast)
	cfg.HourlyGroupSize = flags.HourlyGroupSize
	cfg.HourlySlots = flags.HourlySlots
	cfg.DailySlots = flags.DailySlots
	cfg.MinItemWidth = flags.MinItemWidth
	cfg.ShowSunTimes = flags.ShowSunTimes

	proxy := &hostProxy{}
	opts := []card.Option{
		card.WithEventObserver(func(t forecast.Type, ev forecast.Event) {
			if err := st.SaveEvent(flags.Entity, ev); err != nil {
				log.Printf("persist %s event: %v", t, err)
			}
		}),
	}
	if night := suntimes.Resolver(flags.Latitude, flags.Longitude); night != nil {
		opts = append(opts, card.WithNightResolver(night))
	}

	c, err := card.New(proxy, cfg, opts...)
	if err != nil {
		log.Fatalf("card: %v", err)
	}

	formatter := timefmt.New(flags.Locale, timefmt.Clock(flags.TimeFormat))
	labeler := card.NewLabeler(formatter, flags.Latitude, flags.Longitude, flags.ShowSunTimes)
	server := api.NewServer(c, labeler, flags.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go runConnection(ctx, &flags, proxy, c, st)

	log.Printf("starting server on :%s", flags.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// runConnection keeps one live WebSocket connection to the host, rebuilding
// the client and resubscribing the card whenever the connection drops.
func runConnection(ctx context.Context, flags *cli, proxy *hostProxy, c *card.Card, st *store.Store) {
	first := true
	for ctx.Err() == nil {
		if !first {
			metrics.WSReconnects.Inc()
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
		first = false

		client := hass.NewClient(flags.HassURL, flags.HassToken)
		if err := client.Connect(ctx); err != nil {
			log.Printf("connect: %v", err)
			continue
		}
		log.Printf("connected to %s", flags.HassURL)

		proxy.set(client)
		client.OnEntityChange(func(entityID string) {
			if entityID != flags.Entity {
				return
			}
			go func() {
				if err := c.EntityUpdated(ctx); err != nil {
					log.Printf("entity update: %v", err)
				}
			}()
		})

		if err := c.Subscribe(ctx); err != nil {
			log.Printf("subscribe: %v", err)
			client.Close()
			continue
		}
		seedFromCache(c, st, flags.Entity)

		select {
		case <-client.Done():
			log.Println("connection lost")
		case <-ctx.Done():
			c.Unsubscribe()
			client.Close()
			return
		}
	}
}

// seedFromCache replays persisted events so the card has data before the
// live streams deliver. Slots already filled by live events are untouched.
func seedFromCache(c *card.Card, st *store.Store, entity string) {
	events, err := st.LatestEvents(entity)
	if err != nil {
		log.Printf("load cached events: %v", err)
		return
	}
	for _, ev := range events {
		c.SeedEvent(ev)
	}
	if len(events) > 0 {
		log.Printf("seeded %d cached forecast events", len(events))
	}
}

// hostProxy is a stable card.Host that delegates to the current client,
// letting the card outlive reconnects.
type hostProxy struct {
	mu     sync.Mutex
	client *hass.Client
}

func (p *hostProxy) set(c *hass.Client) {
	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
}

func (p *hostProxy) current() *hass.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

func (p *hostProxy) EntityState(entityID string) *models.EntityState {
	c := p.current()
	if c == nil {
		return nil
	}
	return c.EntityState(entityID)
}

func (p *hostProxy) SubscribeForecast(ctx context.Context, entityID string, t forecast.Type, onEvent func(forecast.Event)) (card.Unsubscribe, error) {
	c := p.current()
	if c == nil {
		return nil, context.Canceled
	}
	return c.SubscribeForecast(ctx, entityID, t, onEvent)
}
