// Package pairing drives the broker-mediated master/slave pairing
// handshake: a periodic rebroadcast of the local view of a
// PairingRecord, candidate collection on the master side, and
// countersignature on the slave side, until both halves are complete.
package pairing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/telemetry"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
	"github.com/sirupsen/logrus"
)

// ErrCancelled is returned by Pair when ctx is cancelled before the
// session completes.
var ErrCancelled = errors.New("pairing: cancelled")

const (
	republishInterval = 5 * time.Second
	firstTick         = 1 * time.Second
	maxKeyChars       = 100
	maxIDChars        = 100
)

// Role is the side of the handshake a given Engine plays.
type Role int

const (
	Master Role = iota
	Slave
)

// Candidate is a slave observed during the master's collection phase.
type Candidate struct {
	PublicKey ed25519.PublicKey
	ID        string
}

// PeerBinding is the authoritative result of a completed pairing,
// held by value rather than by a live reference to the peer.
type PeerBinding struct {
	PeerPublicKey ed25519.PublicKey
	PeerID        string
}

// Config configures one side of a pairing session.
type Config struct {
	Messenger messaging.Messenger
	Identity  *identity.Identity

	LocalType  string // this side's own declared device type, e.g. "Sensor"
	RemoteType string // the type this side requires its peer to declare

	Role  Role
	Nonce []byte // master only; chosen once at session start

	// SelectSlave is called once candidates exist, with a stable
	// snapshot of the candidates observed so far. It returns the
	// chosen index. Invoked from a dedicated goroutine so timer
	// republication is never blocked by it.
	SelectSlave func(candidates []Candidate) int

	// RepublishInterval and FirstTick override the 5s/1s rebroadcast
	// cadence; zero values fall back to the spec's defaults. Tests use
	// this to avoid waiting on real wall-clock timers.
	RepublishInterval time.Duration
	FirstTick         time.Duration
}

// Engine drives one side of a pairing session. Its candidate map and
// local record are explicit struct state, never package-level
// globals, so a process can run independent sessions concurrently.
type Engine struct {
	cfg Config

	mu          sync.Mutex
	localRecord canon.PairingRecord
	candidates  map[string]Candidate // keyed by encoded slave public key
	result      *PeerBinding

	selectOnce sync.Once
	done       chan struct{}
}

// NewEngine creates an Engine ready to run Pair.
func NewEngine(cfg Config) *Engine {
	if cfg.RepublishInterval == 0 {
		cfg.RepublishInterval = republishInterval
	}
	if cfg.FirstTick == 0 {
		cfg.FirstTick = firstTick
	}
	return &Engine{
		cfg:        cfg,
		candidates: make(map[string]Candidate),
		done:       make(chan struct{}),
	}
}

// Pair runs the handshake to completion, cancellation, or ctx
// expiry. On success it returns the PeerBinding; callers are
// responsible for persisting it.
func (e *Engine) Pair(ctx context.Context) (*PeerBinding, error) {
	e.initLocalRecord()

	handler := func(topic string, payload []byte) { e.handleMessage(payload) }
	e.cfg.Messenger.Subscribe(topics.Pairing, handler)
	defer e.cfg.Messenger.Unsubscribe(topics.Pairing, handler)

	go e.republishLoop(ctx)

	select {
	case <-e.done:
		e.mu.Lock()
		result := e.result
		e.mu.Unlock()
		return result, nil
	case <-ctx.Done():
		return nil, ErrCancelled
	}
}

func (e *Engine) initLocalRecord() {
	e.mu.Lock()
	defer e.mu.Unlock()

	pub := identity.EncodePublicKey(e.cfg.Identity.PublicKey)
	if e.cfg.Role == Master {
		record := canon.PairingRecord{
			Nonce:           base64.RawURLEncoding.EncodeToString(e.cfg.Nonce),
			MasterPublicKey: pub,
			MasterId:        e.cfg.Identity.DeviceID,
			MasterType:      e.cfg.LocalType,
			SlaveType:       e.cfg.RemoteType,
		}
		record.MasterSignature = e.cfg.Identity.SignBase64(record.MasterCanonicalBytes())
		e.localRecord = record
		return
	}
	record := canon.PairingRecord{
		SlavePublicKey: pub,
		SlaveId:        e.cfg.Identity.DeviceID,
		SlaveType:      e.cfg.LocalType,
	}
	record.SlaveSignature = e.cfg.Identity.SignBase64(record.SlaveCanonicalBytes())
	e.localRecord = record
}

func (e *Engine) republishLoop(ctx context.Context) {
	timer := time.NewTimer(e.cfg.FirstTick)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-timer.C:
			e.publishLocal()
			timer.Reset(e.cfg.RepublishInterval)
		}
	}
}

func (e *Engine) publishLocal() {
	e.mu.Lock()
	record := e.localRecord
	e.mu.Unlock()

	data, err := encodeRecord(record)
	if err != nil {
		logrus.Warnf("pairing: unable to encode local record: %s", err)
		return
	}
	if err := e.cfg.Messenger.Publish(topics.Pairing, false, data); err != nil {
		logrus.Warnf("pairing: publish failed: %s", err)
	}
}

func (e *Engine) handleMessage(payload []byte) {
	record, err := parseRecord(payload)
	if err != nil {
		return
	}
	if !verifyRecordSignatures(record) {
		return
	}
	if e.cfg.Role == Master {
		e.handleAsMaster(record)
	} else {
		e.handleAsSlave(record)
	}
}

func verifyRecordSignatures(record canon.PairingRecord) bool {
	if record.MasterSignature != "" {
		pub, err := identity.DecodePublicKey(record.MasterPublicKey)
		if err != nil || !identity.Verify(pub, record.MasterCanonicalBytes(), record.MasterSignature) {
			return false
		}
	}
	if record.SlaveSignature != "" {
		pub, err := identity.DecodePublicKey(record.SlavePublicKey)
		if err != nil || !identity.Verify(pub, record.SlaveCanonicalBytes(), record.SlaveSignature) {
			return false
		}
	}
	return true
}

func (e *Engine) handleAsMaster(record canon.PairingRecord) {
	ownPub := identity.EncodePublicKey(e.cfg.Identity.PublicKey)

	if record.MasterPublicKey != "" {
		if record.MasterPublicKey != ownPub {
			return // belongs to another concurrent pairing
		}
		if record.Completed() {
			e.finishMaster(record)
		}
		return
	}

	if record.SlavePublicKey == "" || record.SlaveId == "" {
		return
	}
	if len(record.SlavePublicKey) > maxKeyChars || len(record.SlaveId) > maxIDChars {
		return
	}
	if record.SlaveType != "" && record.SlaveType != e.cfg.RemoteType {
		return // role safety: the slave declared the wrong type
	}
	pub, err := identity.DecodePublicKey(record.SlavePublicKey)
	if err != nil {
		return
	}
	if _, err := telemetry.DeriveSharedKey(e.cfg.Identity.PrivateKey, pub); err != nil {
		return // ill-formed key: fails ECDH validation
	}

	e.mu.Lock()
	e.candidates[record.SlavePublicKey] = Candidate{PublicKey: pub, ID: record.SlaveId}
	e.mu.Unlock()

	e.selectOnce.Do(func() { go e.runSelection() })
}

func (e *Engine) runSelection() {
	// give the timer a beat to surface more than one candidate before
	// presenting the list, mirroring the rebroadcast cadence.
	time.Sleep(e.cfg.FirstTick)

	e.mu.Lock()
	candidates := e.candidateSliceLocked()
	e.mu.Unlock()
	if len(candidates) == 0 || e.cfg.SelectSlave == nil {
		return
	}
	idx := e.cfg.SelectSlave(candidates)
	if idx < 0 || idx >= len(candidates) {
		return
	}
	chosen := candidates[idx]

	e.mu.Lock()
	record := e.localRecord
	record.SlavePublicKey = identity.EncodePublicKey(chosen.PublicKey)
	record.SlaveId = chosen.ID
	record.SlaveSignature = ""
	record.MasterSignature = e.cfg.Identity.SignBase64(record.MasterCanonicalBytes())
	e.localRecord = record
	e.mu.Unlock()

	e.publishLocal()
}

func (e *Engine) candidateSliceLocked() []Candidate {
	out := make([]Candidate, 0, len(e.candidates))
	for _, c := range e.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) handleAsSlave(record canon.PairingRecord) {
	if !record.MasterCompleted() || record.SlaveCompleted() {
		return
	}
	ownPub := identity.EncodePublicKey(e.cfg.Identity.PublicKey)
	if record.SlavePublicKey != ownPub || record.SlaveId != e.cfg.Identity.DeviceID {
		return // not selected
	}
	if record.MasterType != e.cfg.RemoteType {
		return // role safety: the master declared the wrong type
	}

	final := record
	final.SlaveType = e.cfg.LocalType
	final.SlaveSignature = e.cfg.Identity.SignBase64(final.SlaveCanonicalBytes())

	e.mu.Lock()
	e.localRecord = final
	e.mu.Unlock()

	e.publishLocal()
	e.finishSlave(final)
}

// finishMaster and finishSlave both complete the session idempotently;
// only the first call records a result and closes done.
func (e *Engine) finishMaster(record canon.PairingRecord) {
	pub, err := identity.DecodePublicKey(record.SlavePublicKey)
	if err != nil {
		return
	}
	e.commit(PeerBinding{PeerPublicKey: pub, PeerID: record.SlaveId})
}

func (e *Engine) finishSlave(record canon.PairingRecord) {
	pub, err := identity.DecodePublicKey(record.MasterPublicKey)
	if err != nil {
		return
	}
	e.commit(PeerBinding{PeerPublicKey: pub, PeerID: record.MasterId})
}

func (e *Engine) commit(binding PeerBinding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result != nil {
		return // idempotent: first completion wins
	}
	e.result = &binding
	close(e.done)
}
