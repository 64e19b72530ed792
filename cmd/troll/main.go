// Command troll runs the adversarial mutator: it subscribes to every
// topic on the broker and republishes one perturbed variant of each
// message it has not itself emitted, at a tunable trolliness, until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/settings"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
	"github.com/hardenmqtt/harden-mqtt-go/troll"
	"github.com/sirupsen/logrus"
)

func main() {
	configFolder := flag.String("c", "./config", "device configuration folder")
	deviceID := flag.String("id", "troll-1", "this device's connection config name")
	logLevel := flag.String("debug", "info", "log level: error|warn|info|debug")
	trolliness := flag.Float64("trolliness", 4, "mutation scaling factor; higher mutates less often")
	flag.Parse()

	if err := errs.SetLogging(*logLevel, ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := settings.LoadConnectionConfig(*configFolder, *deviceID)
	if err != nil {
		logrus.Fatalf("troll: unable to load connection config: %s", err)
	}

	msgr := messaging.NewMqttMessenger(cfg)
	if err := msgr.Connect(topics.Events, fmt.Sprintf("%s offline", *deviceID)); err != nil {
		logrus.Fatalf("troll: unable to connect: %s", err)
	}
	defer msgr.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignal(cancel)

	mutator := troll.New(troll.Config{
		Messenger:  msgr,
		Trolliness: *trolliness,
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	mutator.Start()
	defer mutator.Stop()

	logrus.Infof("troll: running at trolliness %.1f", *trolliness)
	<-ctx.Done()
	logrus.Info("troll: shutting down")
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
