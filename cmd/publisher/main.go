package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/config"
)

type locationMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

type point struct {
	lat, lon float64
}

// default target when no seed file is given
var office = point{lat: -6.2088, lon: 106.8456}

type options struct {
	envFile  string
	broker   string
	deviceID string
	seedFile string
	interval time.Duration
	nearOdds float64
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:           "publisher",
		Short:         "Publish mock device locations that wander in and out of geofences",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "optional env file; environment variables take precedence")
	cmd.Flags().StringVar(&opts.broker, "broker", "", "MQTT broker URL (overrides MQTT_BROKER)")
	cmd.Flags().StringVar(&opts.deviceID, "device", "", "device id to publish as (overrides DEVICE_ID)")
	cmd.Flags().StringVar(&opts.seedFile, "seed", "", "YAML geofence list to drift around (overrides SEED_FILE)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 2*time.Second, "time between fixes")
	cmd.Flags().Float64Var(&opts.nearOdds, "near", 0.3, "probability of a fix landing near a geofence")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "publisher: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.interval <= 0 {
		return errors.New("interval must be positive")
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	if opts.broker != "" {
		cfg.MQTTBroker = opts.broker
	}
	if opts.deviceID != "" {
		cfg.DeviceID = opts.deviceID
	}
	if opts.seedFile != "" {
		cfg.SeedFile = opts.seedFile
	}
	// must not collide with the server's session on the same broker
	cfg.MQTTClientID = "geonotify-mock-device-" + cfg.DeviceID

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	targets, err := loadTargets(cfg.SeedFile)
	if err != nil {
		return err
	}

	client, err := config.NewMQTT(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	alertTopic := fmt.Sprintf("/geonotify/device/%s/alert", cfg.DeviceID)
	token := client.Subscribe(alertTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		logger.Info("alert received", zap.ByteString("payload", msg.Payload()))
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe alerts: %w", token.Error())
	}

	topic := fmt.Sprintf("/geonotify/device/%s/location", cfg.DeviceID)
	logger.Info("publishing mock locations",
		zap.String("broker", cfg.MQTTBroker),
		zap.String("topic", topic),
		zap.Duration("interval", opts.interval),
		zap.Int("targets", len(targets)))

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			payload, err := json.Marshal(nextFix(rnd, cfg.DeviceID, targets, opts.nearOdds, now))
			if err != nil {
				return fmt.Errorf("encode location: %w", err)
			}
			token := client.Publish(topic, 1, false, payload)
			if token.Wait() && token.Error() != nil {
				logger.Warn("publish failed", zap.String("topic", topic), zap.Error(token.Error()))
				continue
			}
			logger.Debug("location published", zap.ByteString("payload", payload))
		}
	}
}

// loadTargets returns the geofence centres to drift around, or the office
// point when no seed file is given or it lists nothing.
func loadTargets(seedFile string) ([]point, error) {
	if seedFile == "" {
		return []point{office}, nil
	}
	defs, err := config.LoadSeed(seedFile)
	if err != nil {
		return nil, err
	}
	targets := make([]point, 0, len(defs))
	for _, d := range defs {
		targets = append(targets, point{lat: d.Latitude, lon: d.Longitude})
	}
	if len(targets) == 0 {
		return []point{office}, nil
	}
	return targets, nil
}

// nextFix lands within ~50m of a random target with probability nearOdds,
// otherwise up to ~1km away.
func nextFix(rnd *rand.Rand, deviceID string, targets []point, nearOdds float64, now time.Time) locationMessage {
	spread := 0.02
	if rnd.Float64() < nearOdds {
		spread = 0.0005
	}
	t := targets[rnd.IntN(len(targets))]
	return locationMessage{
		DeviceID:  deviceID,
		Latitude:  t.lat + (rnd.Float64()-0.5)*spread,
		Longitude: t.lon + (rnd.Float64()-0.5)*spread,
		Timestamp: now.Unix(),
	}
}
