// Package app wires configuration, storage, transport and the house together
// for the API and MCP binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/linkhub/pkg/config"
	"github.com/urmzd/linkhub/pkg/db"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/events"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/jobs"
	"github.com/urmzd/linkhub/pkg/plm"
	"github.com/urmzd/linkhub/pkg/schema"
)

// App is a running house with its persistence and event fan-out.
type App struct {
	Config    config.Config
	DB        *db.DB
	Settings  *db.Config
	House     *house.House
	Broker    *events.Broker
	Validator *schema.Validator

	scheduler *jobs.Scheduler
	transport device.Transport
	mqtt      *events.MQTTPublisher
	cancel    context.CancelFunc

	saveMu sync.Mutex
}

// SetupLogging configures the global logger. Output goes to stderr because
// stdout carries the MCP transport.
func SetupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Open prepares the database, loads the active house and connects the modem.
// When the modem cannot be opened the house runs on a transport that fails
// every exchange, so the stored model stays browsable.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	return open(ctx, cfg, nil)
}

// open runs Open on transport when it is not nil instead of the configured port.
func open(ctx context.Context, cfg config.Config, transport device.Transport) (*App, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", database.Path()).Msg("Database opened")

	a := &App{Config: cfg, DB: database, Broker: events.NewBroker(), Validator: schema.NewValidator(), transport: transport}
	if err := a.init(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if err := a.DB.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	needsBootstrap, err := a.DB.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check bootstrap status: %w", err)
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := a.DB.Bootstrap(ctx); err != nil {
			return fmt.Errorf("failed to bootstrap database: %w", err)
		}
	}

	a.Settings, err = a.DB.ActiveConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Info().
		Str("house", a.Settings.House.Name).
		Str("timezone", a.Settings.Timezone()).
		Str("api_address", a.Settings.APIAddress()).
		Msg("Configuration loaded")

	if a.transport == nil {
		a.transport = a.openTransport()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.scheduler = jobs.NewScheduler(runCtx)
	a.House = house.New(a.Settings.House.Name, a.Settings.House.HubID, a.transport, a.scheduler)

	devices, err := a.DB.Devices().Load(ctx, a.Settings.House.ID)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}
	for _, d := range devices {
		if err := a.House.AddDevice(d); err != nil {
			return err
		}
	}
	log.Info().Int("devices", len(devices)).Msg("House loaded")

	if err := a.adoptModem(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not identify the modem, hub unchanged")
	}

	a.scheduler.Observe(a.onJobFinished)
	a.scheduler.Observe(a.Broker.ObserveJobs())

	if sub, ok := a.transport.(device.EventSubscriber); ok {
		a.Broker.Forward(runCtx, sub)
	}
	a.persistOnLinking(runCtx)

	if a.Config.MQTT.Enabled() {
		pub, err := events.ConnectMQTT(a.Config.MQTT)
		if err != nil {
			log.Warn().Err(err).Str("broker", a.Config.MQTT.Broker).Msg("MQTT unavailable, events stay local")
		} else {
			a.mqtt = pub
			a.Broker.AddSink(pub)
		}
	}

	return nil
}

func (a *App) openTransport() device.Transport {
	if a.Config.SerialPort == "" {
		log.Warn().Msg("No serial port configured, using null transport")
		return device.NewNullTransport()
	}
	modem, err := plm.Open(a.Config.SerialPort, a.Config.TransportTimeout)
	if err != nil {
		log.Warn().Err(err).Str("port", a.Config.SerialPort).Msg("PLM unavailable, using null transport")
		return device.NewNullTransport()
	}
	return modem
}

// adoptModem makes the connected modem the house hub, adding it to the
// collection on first contact.
func (a *App) adoptModem(ctx context.Context) error {
	if !a.transport.IsConnected() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.Config.TransportTimeout)
	defer cancel()

	info, err := a.House.Transport().Modem(ctx)
	if err != nil {
		return err
	}
	if info.ID == a.House.HubID() {
		return nil
	}

	if _, err := a.House.Device(info.ID); errors.Is(err, house.ErrDeviceNotFound) {
		if err := a.House.AddDevice(&house.Device{Info: info, Name: "hub", Gateway: true}); err != nil {
			return err
		}
	}
	if err := a.House.SetHub(info.ID); err != nil {
		return err
	}

	h := *a.Settings.House
	h.HubID = info.ID
	if err := a.DB.Houses().Update(ctx, &h); err != nil {
		return fmt.Errorf("failed to store hub: %w", err)
	}
	a.Settings.House = &h
	log.Info().Str("hub", info.ID.String()).Msg("Modem adopted as hub")
	return a.Save(ctx)
}

func (a *App) onJobFinished(r jobs.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Save(ctx); err != nil {
		log.Error().Err(err).Str("job", r.JobID).Msg("Failed to save house after job")
	}
	if err := a.DB.JobRuns().Record(ctx, a.Settings.House.ID, r); err != nil {
		log.Error().Err(err).Str("job", r.JobID).Msg("Failed to record job run")
	}
}

// persistOnLinking saves the house after every linking event. Events the
// house did not request itself, such as a set-button press, are applied to
// the model first.
func (a *App) persistOnLinking(ctx context.Context) {
	ch := a.Broker.Subscribe()
	go func() {
		defer a.Broker.Unsubscribe(ch)
		for {
			select {
			case evt := <-ch:
				if evt.Type != events.TypeLinkingCompleted || evt.Linking == nil {
					continue
				}
				if !evt.Linking.Solicited {
					log.Info().
						Str("device", evt.Linking.DeviceID.String()).
						Str("action", evt.Linking.Action.String()).
						Uint8("group", evt.Linking.Group).
						Msg("Applying linking reported by the network")
					a.House.ApplyLinking(*evt.Linking)
				}
				if err := a.Save(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to save house after linking")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Save writes the device collection of the house.
func (a *App) Save(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.DB.Devices().Save(ctx, a.Settings.House.ID, a.House.Devices())
}

// History serves the job runs of the active house.
func (a *App) History() *History {
	return &History{runs: a.DB.JobRuns(), houseID: a.Settings.House.ID}
}

// Close stops jobs, saves the house and releases every resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.scheduler.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down jobs: %w", err))
	}
	a.cancel()
	if err := a.Save(ctx); err != nil {
		errs = append(errs, fmt.Errorf("saving house: %w", err))
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	a.transport.Close()
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// History adapts the job run store to the API and MCP surfaces.
type History struct {
	runs    db.JobRunStore
	houseID int64
}

func (h *History) Recent(ctx context.Context, limit int) ([]jobs.Result, error) {
	return h.runs.List(ctx, h.houseID, limit)
}

func (h *History) Get(ctx context.Context, id string) (jobs.Result, error) {
	return h.runs.Get(ctx, id)
}
