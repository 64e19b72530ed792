package pairing_test

import (
	"context"
	"testing"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/pairing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTick = 20 * time.Millisecond

func newIdentity(t *testing.T, deviceID, deviceType string) *identity.Identity {
	ident, err := identity.Create(deviceID, deviceType)
	require.NoError(t, err)
	return ident
}

func firstIndex(candidates []pairing.Candidate) int { return 0 }

func TestPairSucceedsWithMatchingBinding(t *testing.T) {
	bus := messaging.NewDummyMessenger()
	masterIdent := newIdentity(t, "master-1", "Display")
	slaveIdent := newIdentity(t, "slave-1", "Sensor")

	master := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          masterIdent,
		LocalType:         "Display",
		RemoteType:        "Sensor",
		Role:              pairing.Master,
		Nonce:             []byte("0123456789abcdef"),
		SelectSlave:       firstIndex,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})
	slave := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          slaveIdent,
		LocalType:         "Sensor",
		RemoteType:        "Display",
		Role:              pairing.Slave,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type outcome struct {
		binding *pairing.PeerBinding
		err     error
	}
	masterResult := make(chan outcome, 1)
	slaveResult := make(chan outcome, 1)

	go func() {
		binding, err := master.Pair(ctx)
		masterResult <- outcome{binding, err}
	}()
	go func() {
		binding, err := slave.Pair(ctx)
		slaveResult <- outcome{binding, err}
	}()

	mOut := <-masterResult
	sOut := <-slaveResult

	require.NoError(t, mOut.err)
	require.NoError(t, sOut.err)
	require.NotNil(t, mOut.binding)
	require.NotNil(t, sOut.binding)

	assert.Equal(t, slaveIdent.DeviceID, mOut.binding.PeerID)
	assert.True(t, mOut.binding.PeerPublicKey.Equal(slaveIdent.PublicKey))
	assert.Equal(t, masterIdent.DeviceID, sOut.binding.PeerID)
	assert.True(t, sOut.binding.PeerPublicKey.Equal(masterIdent.PublicKey))
}

func TestPairRejectsWrongRemoteType(t *testing.T) {
	bus := messaging.NewDummyMessenger()
	masterIdent := newIdentity(t, "master-2", "Display")
	slaveIdent := newIdentity(t, "slave-2", "Troll")

	master := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          masterIdent,
		LocalType:         "Display",
		RemoteType:        "Sensor", // master only wants a Sensor
		Role:              pairing.Master,
		Nonce:             []byte("fedcba9876543210"),
		SelectSlave:       firstIndex,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})
	slave := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          slaveIdent,
		LocalType:         "Troll", // declares a type the master doesn't want
		RemoteType:        "Display",
		Role:              pairing.Slave,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	go slave.Pair(ctx)
	binding, err := master.Pair(ctx)

	assert.ErrorIs(t, err, pairing.ErrCancelled)
	assert.Nil(t, binding)
}

func TestPairRejectsWrongMasterType(t *testing.T) {
	bus := messaging.NewDummyMessenger()
	masterIdent := newIdentity(t, "master-3", "Troll")
	slaveIdent := newIdentity(t, "slave-3", "Sensor")

	master := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          masterIdent,
		LocalType:         "Troll",
		RemoteType:        "Sensor",
		Role:              pairing.Master,
		Nonce:             []byte("aaaaaaaaaaaaaaaa"),
		SelectSlave:       firstIndex,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})
	// slave only accepts a Display master, but the master above is a Troll.
	slave := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          slaveIdent,
		LocalType:         "Sensor",
		RemoteType:        "Display",
		Role:              pairing.Slave,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	go master.Pair(ctx)
	binding, err := slave.Pair(ctx)

	assert.ErrorIs(t, err, pairing.ErrCancelled)
	assert.Nil(t, binding)
}

func TestPairSelectsAmongMultipleCandidates(t *testing.T) {
	bus := messaging.NewDummyMessenger()
	masterIdent := newIdentity(t, "master-4", "Display")
	slaveAIdent := newIdentity(t, "slave-a", "Sensor")
	slaveBIdent := newIdentity(t, "slave-b", "Sensor")

	selectSecond := func(candidates []pairing.Candidate) int {
		for i, c := range candidates {
			if c.ID == "slave-b" {
				return i
			}
		}
		return -1
	}

	master := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          masterIdent,
		LocalType:         "Display",
		RemoteType:        "Sensor",
		Role:              pairing.Master,
		Nonce:             []byte("1111111111111111"),
		SelectSlave:       selectSecond,
		RepublishInterval: testTick,
		FirstTick:         3 * testTick,
	})
	slaveA := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          slaveAIdent,
		LocalType:         "Sensor",
		RemoteType:        "Display",
		Role:              pairing.Slave,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})
	slaveB := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          slaveBIdent,
		LocalType:         "Sensor",
		RemoteType:        "Display",
		Role:              pairing.Slave,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	masterResult := make(chan *pairing.PeerBinding, 1)
	go func() {
		binding, err := master.Pair(ctx)
		require.NoError(t, err)
		masterResult <- binding
	}()
	go slaveA.Pair(ctx)
	go slaveB.Pair(ctx)

	binding := <-masterResult
	require.NotNil(t, binding)
	assert.Equal(t, "slave-b", binding.PeerID)
}

func TestPairCancellation(t *testing.T) {
	bus := messaging.NewDummyMessenger()
	masterIdent := newIdentity(t, "master-5", "Display")

	master := pairing.NewEngine(pairing.Config{
		Messenger:         bus,
		Identity:          masterIdent,
		LocalType:         "Display",
		RemoteType:        "Sensor",
		Role:              pairing.Master,
		Nonce:             []byte("2222222222222222"),
		SelectSlave:       firstIndex,
		RepublishInterval: testTick,
		FirstTick:         testTick,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	binding, err := master.Pair(ctx)
	assert.ErrorIs(t, err, pairing.ErrCancelled)
	assert.Nil(t, binding)
}

// TestPairSucceedsOverLossyLink exercises pairing under the kind of
// broker loss the periodic rebroadcast is meant to tolerate: with half
// of all publishes silently dropped, repeated republication still
// gets a copy of each side's record through before the context
// deadline.
func TestPairSucceedsOverLossyLink(t *testing.T) {
	bus := messaging.NewLossyMessenger(messaging.NewDummyMessenger(), 0.5, 7)
	masterIdent := newIdentity(t, "master-6", "Display")
	slaveIdent := newIdentity(t, "slave-6", "Sensor")

	lossyTick := 5 * time.Millisecond
	master := pairing.NewEngine(pairing.Config{
		Messenger: bus, Identity: masterIdent, LocalType: "Display", RemoteType: "Sensor",
		Role: pairing.Master, Nonce: []byte("3333333333333333"), SelectSlave: firstIndex,
		RepublishInterval: lossyTick, FirstTick: lossyTick,
	})
	slave := pairing.NewEngine(pairing.Config{
		Messenger: bus, Identity: slaveIdent, LocalType: "Sensor", RemoteType: "Display",
		Role: pairing.Slave, RepublishInterval: lossyTick, FirstTick: lossyTick,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	masterResult := make(chan *pairing.PeerBinding, 1)
	slaveResult := make(chan *pairing.PeerBinding, 1)
	go func() {
		binding, err := master.Pair(ctx)
		require.NoError(t, err)
		masterResult <- binding
	}()
	go func() {
		binding, err := slave.Pair(ctx)
		require.NoError(t, err)
		slaveResult <- binding
	}()

	mBinding := <-masterResult
	sBinding := <-slaveResult
	require.NotNil(t, mBinding)
	require.NotNil(t, sBinding)
	assert.Equal(t, slaveIdent.DeviceID, mBinding.PeerID)
	assert.Equal(t, masterIdent.DeviceID, sBinding.PeerID)
}
