// Command sensor runs the data-source device: it pairs as the
// pairing master (it waits for a display to announce itself and
// selects one), then publishes synthetic weather readings through
// the five-representation telemetry pipeline on a fixed interval
// until interrupted.
package main

import (
	"context"
	cryptorand "crypto/rand"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/console"
	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/pairing"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
	"github.com/hardenmqtt/harden-mqtt-go/settings"
	"github.com/hardenmqtt/harden-mqtt-go/telemetry"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
	"github.com/sirupsen/logrus"
)

const deviceType = "Sensor"
const remoteType = "Display"

func main() {
	configFolder := flag.String("c", "./config", "device configuration folder")
	deviceID := flag.String("id", "sensor-1", "this device's ID")
	logLevel := flag.String("debug", "info", "log level: error|warn|info|debug")
	publishInterval := flag.Duration("interval", 10*time.Second, "telemetry publish interval")
	flag.Parse()

	if err := errs.SetLogging(*logLevel, ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ident, err := identity.LoadOrCreate(identityPath(*configFolder, *deviceID), *deviceID, deviceType)
	if err != nil {
		logrus.Fatalf("sensor: unable to load or create identity: %s", err)
	}

	cfg, err := settings.LoadConnectionConfig(*configFolder, *deviceID)
	if err != nil {
		logrus.Fatalf("sensor: unable to load connection config: %s", err)
	}

	msgr := messaging.NewMqttMessenger(cfg)
	if err := msgr.Connect(topics.Events, fmt.Sprintf("%s offline", *deviceID)); err != nil {
		logrus.Fatalf("sensor: unable to connect: %s", err)
	}
	defer msgr.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignal(cancel)

	pipeline := telemetry.New(msgr, ident)

	peer, err := settings.LoadPeerBinding(*configFolder, *deviceID)
	if err != nil && !os.IsNotExist(err) {
		logrus.Warnf("sensor: unable to load peer binding: %s", err)
	}
	if peer != nil {
		pipeline.SetPeer(&telemetry.PeerBinding{PeerPublicKey: peer.PeerPublicKey, PeerID: peer.PeerID})
	} else {
		binding := pairWithDisplay(ctx, msgr, ident)
		if binding != nil {
			if err := settings.SavePeerBinding(*configFolder, *deviceID, *binding); err != nil {
				logrus.Warnf("sensor: unable to persist peer binding: %s", err)
			}
			pipeline.SetPeer(&telemetry.PeerBinding{PeerPublicKey: binding.PeerPublicKey, PeerID: binding.PeerID})
		}
	}

	watcher, err := settings.NewConfigWatcher(*configFolder, *deviceID, func(reloaded *messaging.Config) {
		logrus.Infof("sensor: connection config changed, reconnecting")
		*cfg = *reloaded
		msgr.Connect("", "")
	})
	if err == nil {
		watcher.Start()
		defer watcher.Stop()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(*publishInterval)
	defer ticker.Stop()

	logrus.Infof("sensor: publishing every %s as %s", *publishInterval, *deviceID)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("sensor: shutting down")
			return
		case <-ticker.C:
			reading := syntheticReading(*deviceID, rng)
			if err := pipeline.PublishAll(reading); err != nil {
				logrus.Warnf("sensor: publish failed: %s", err)
			}
		}
	}
}

func identityPath(folder string, deviceID string) string {
	return filepath.Join(folder, deviceID+identity.FileSuffix)
}

// pairWithDisplay runs the pairing engine as master: it waits for a
// display to announce its candidacy on HardenMqtt/Pairing, presents
// the candidates on a dedicated console goroutine, and returns the
// resulting binding, or nil if cancelled.
func pairWithDisplay(ctx context.Context, msgr messaging.Messenger, ident *identity.Identity) *pairing.PeerBinding {
	nonce := make([]byte, 32)
	if _, err := cryptorand.Read(nonce); err != nil {
		logrus.Warnf("sensor: unable to generate pairing nonce: %s", err)
	}

	engine := pairing.NewEngine(pairing.Config{
		Messenger:   msgr,
		Identity:    ident,
		LocalType:   deviceType,
		RemoteType:  remoteType,
		Role:        pairing.Master,
		Nonce:       nonce,
		SelectSlave: console.PromptSelectSlave(),
	})

	result, err := engine.Pair(ctx)
	if err != nil {
		logrus.Warn("sensor: pairing cancelled before completion")
		return nil
	}
	logrus.Infof("sensor: paired with %s", result.PeerID)
	return result
}

func syntheticReading(deviceID string, rng *rand.Rand) sensordata.SensorReading {
	now := time.Now().UTC()
	temp := 18 + rng.Float64()*10
	humidity := 40 + rng.Float64()*30
	pressure := 1000 + rng.Float64()*30
	wind := rng.Float64() * 8

	return sensordata.SensorReading{
		ID:                  deviceID,
		Name:                deviceID,
		Readout:             now,
		Timestamp:           now,
		TemperatureCelcius:  &temp,
		HumidityPercent:     &humidity,
		PressureHectopascal: &pressure,
		WindSpeedMs:         &wind,
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
