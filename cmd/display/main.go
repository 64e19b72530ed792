// Command display runs the data-sink device: it pairs as the pairing
// slave (it announces itself and waits to be selected), then
// subscribes to every presentation topic and renders the decoded
// fields as an in-place console table until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/console"
	"github.com/hardenmqtt/harden-mqtt-go/dispatch"
	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/pairing"
	"github.com/hardenmqtt/harden-mqtt-go/settings"
	"github.com/hardenmqtt/harden-mqtt-go/telemetry"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
	"github.com/sirupsen/logrus"
)

const deviceType = "Display"
const remoteType = "Sensor"

func main() {
	configFolder := flag.String("c", "./config", "device configuration folder")
	deviceID := flag.String("id", "display-1", "this device's ID")
	logLevel := flag.String("debug", "info", "log level: error|warn|info|debug")
	renderInterval := flag.Duration("render-interval", time.Second, "console table redraw interval")
	flag.Parse()

	if err := errs.SetLogging(*logLevel, ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ident, err := identity.LoadOrCreate(identityPath(*configFolder, *deviceID), *deviceID, deviceType)
	if err != nil {
		logrus.Fatalf("display: unable to load or create identity: %s", err)
	}

	cfg, err := settings.LoadConnectionConfig(*configFolder, *deviceID)
	if err != nil {
		logrus.Fatalf("display: unable to load connection config: %s", err)
	}

	msgr := messaging.NewMqttMessenger(cfg)
	if err := msgr.Connect(topics.Events, fmt.Sprintf("%s offline", *deviceID)); err != nil {
		logrus.Fatalf("display: unable to connect: %s", err)
	}
	defer msgr.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignal(cancel)

	pipeline := telemetry.New(msgr, ident)

	peer, err := settings.LoadPeerBinding(*configFolder, *deviceID)
	if err != nil && !os.IsNotExist(err) {
		logrus.Warnf("display: unable to load peer binding: %s", err)
	}
	if peer != nil {
		pipeline.SetPeer(&telemetry.PeerBinding{PeerPublicKey: peer.PeerPublicKey, PeerID: peer.PeerID})
	} else {
		binding := pairWithSensor(ctx, msgr, ident)
		if binding != nil {
			if err := settings.SavePeerBinding(*configFolder, *deviceID, *binding); err != nil {
				logrus.Warnf("display: unable to persist peer binding: %s", err)
			}
			pipeline.SetPeer(&telemetry.PeerBinding{PeerPublicKey: binding.PeerPublicKey, PeerID: binding.PeerID})
		}
	}

	watcher, err := settings.NewConfigWatcher(*configFolder, *deviceID, func(reloaded *messaging.Config) {
		logrus.Infof("display: connection config changed, reconnecting")
		*cfg = *reloaded
		msgr.Connect("", "")
	})
	if err == nil {
		watcher.Start()
		defer watcher.Stop()
	}

	dispatcher := dispatch.New(pipeline)
	for _, wildcard := range []string{
		topics.UnstructuredWildcard,
		topics.StructuredWildcard,
		topics.InteroperableWildcard,
		topics.SecuredPublicWildcard,
		topics.SecuredConfidentialWildcard,
	} {
		msgr.Subscribe(wildcard, dispatcher.HandleMessage)
	}

	table := console.NewTable(os.Stdout)
	ticker := time.NewTicker(*renderInterval)
	defer ticker.Stop()

	logrus.Infof("display: listening as %s", *deviceID)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("display: shutting down")
			return
		case <-ticker.C:
			table.Render(dispatcher.Rows())
		}
	}
}

func identityPath(folder string, deviceID string) string {
	return filepath.Join(folder, deviceID+identity.FileSuffix)
}

// pairWithSensor runs the pairing engine as slave: it announces its
// own public key and ID on HardenMqtt/Pairing and waits to be
// selected by a master, countersigning once chosen.
func pairWithSensor(ctx context.Context, msgr messaging.Messenger, ident *identity.Identity) *pairing.PeerBinding {
	engine := pairing.NewEngine(pairing.Config{
		Messenger:  msgr,
		Identity:   ident,
		LocalType:  deviceType,
		RemoteType: remoteType,
		Role:       pairing.Slave,
	})

	result, err := engine.Pair(ctx)
	if err != nil {
		logrus.Warn("display: pairing cancelled before completion")
		return nil
	}
	logrus.Infof("display: paired with %s", result.PeerID)
	return result
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
