// Package dispatch routes an inbound message to the presentation
// decoder matching its topic, and keeps one row of state per device so
// repeated updates overwrite in place instead of scrolling a console.
package dispatch

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
	"github.com/hardenmqtt/harden-mqtt-go/telemetry"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
)

// ErrUntrustedPeer is returned for a secured message whose public-key
// topic segment does not name the device's paired peer.
var ErrUntrustedPeer = errors.New("dispatch: secured message from an untrusted or unpaired public key")

// Presentation identifies which of the five telemetry representations
// a topic carries.
type Presentation int

// The five presentations, in the order the spec's data-flow table
// lists them.
const (
	Unstructured Presentation = iota
	Structured
	Interoperable
	SecuredPublic
	SecuredConfidential
)

// String names a presentation the way console output labels a row.
func (p Presentation) String() string {
	switch p {
	case Unstructured:
		return "Unstructured"
	case Structured:
		return "Structured"
	case Interoperable:
		return "Interoperable"
	case SecuredPublic:
		return "Secured/Public"
	case SecuredConfidential:
		return "Secured/Confidential"
	default:
		return "Unknown"
	}
}

// Row is one device's last-known decoded state, keyed by device ID
// (unsecured topics) or Base64Url public key (secured topics).
type Row struct {
	Key          string
	Presentation Presentation
	Fields       []sensordata.Field
	Err          error
	UpdatedAt    time.Time
}

// Dispatcher classifies inbound topics, decodes their payload, and
// tracks the latest Row per key. telemetry is used to verify and
// decrypt the two secured presentations against the device's paired
// peer; secured messages from any other public key are classified but
// left undecoded (ErrUntrustedPeer), matching a display that "trusts
// only signed topics" from its own paired sensor.
type Dispatcher struct {
	telemetry *telemetry.Telemetry

	mu   sync.Mutex
	rows map[string]Row
}

// New creates a Dispatcher bound to a device's own Telemetry pipeline,
// used to verify/decrypt secured presentations against its paired peer.
func New(t *telemetry.Telemetry) *Dispatcher {
	return &Dispatcher{telemetry: t, rows: make(map[string]Row)}
}

// ClassifyTopic matches topic against the fixed HardenMqtt/... prefixes
// and extracts the key segment (device ID or public key) from it.
func ClassifyTopic(topic string) (presentation Presentation, key string, ok bool) {
	switch {
	case strings.HasPrefix(topic, topics.Root+"/Unsecured/Unstructured/"):
		rest := strings.TrimPrefix(topic, topics.Root+"/Unsecured/Unstructured/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return 0, "", false
		}
		return Unstructured, parts[0], true
	case strings.HasPrefix(topic, topics.Root+"/Unsecured/Structured/"):
		return Structured, strings.TrimPrefix(topic, topics.Root+"/Unsecured/Structured/"), true
	case strings.HasPrefix(topic, topics.Root+"/Unsecured/Interoperable/"):
		return Interoperable, strings.TrimPrefix(topic, topics.Root+"/Unsecured/Interoperable/"), true
	case strings.HasPrefix(topic, topics.Root+"/Secured/Public/"):
		return SecuredPublic, strings.TrimPrefix(topic, topics.Root+"/Secured/Public/"), true
	case strings.HasPrefix(topic, topics.Root+"/Secured/Confidential/"):
		return SecuredConfidential, strings.TrimPrefix(topic, topics.Root+"/Secured/Confidential/"), true
	default:
		return 0, "", false
	}
}

// HandleMessage decodes one inbound message and updates that device's
// row. Topics outside the five presentations (Pairing, Events) are
// ignored; decode failures replace the row with the error rather than
// leaving stale data displayed.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	presentation, key, ok := ClassifyTopic(topic)
	if !ok {
		return
	}

	row := Row{Key: key, Presentation: presentation, UpdatedAt: time.Now()}
	switch presentation {
	case Unstructured:
		field := strings.TrimPrefix(topic, topics.Root+"/Unsecured/Unstructured/"+key+"/")
		row.Fields = []sensordata.Field{{Thing: key, Name: field, Value: sensordata.Value{Kind: sensordata.KindString, Str: string(payload)}}}
	case Structured:
		var reading sensordata.SensorReading
		if err := json.Unmarshal(payload, &reading); err != nil {
			row.Err = err
		} else {
			row.Fields = reading.Fields(key)
		}
	case Interoperable:
		_, fields, err := canon.ParsePayload(payload)
		row.Fields, row.Err = fields, err
	case SecuredPublic:
		row.Fields, row.Err = d.decodeSecuredPublic(key, payload)
	case SecuredConfidential:
		row.Fields, row.Err = d.decodeSecuredConfidential(key, payload)
	}

	d.mu.Lock()
	d.rows[key] = row
	d.mu.Unlock()
}

func (d *Dispatcher) decodeSecuredPublic(key string, payload []byte) ([]sensordata.Field, error) {
	peerPub, err := d.trustedPeerKey(key)
	if err != nil {
		return nil, err
	}
	_, fields, err := d.telemetry.VerifySecuredPublic(payload, peerPub)
	return fields, err
}

func (d *Dispatcher) decodeSecuredConfidential(key string, payload []byte) ([]sensordata.Field, error) {
	peerPub, err := d.trustedPeerKey(key)
	if err != nil {
		return nil, err
	}
	_, fields, err := d.telemetry.VerifySecuredConfidential(payload, peerPub)
	return fields, err
}

// trustedPeerKey returns the paired peer's public key if encodedKey
// names it, or ErrUntrustedPeer otherwise: a display only decodes
// secured telemetry from the one peer it paired with.
func (d *Dispatcher) trustedPeerKey(encodedKey string) ([]byte, error) {
	if d.telemetry.Peer == nil {
		return nil, ErrUntrustedPeer
	}
	if identity.EncodePublicKey(d.telemetry.Peer.PeerPublicKey) != encodedKey {
		return nil, ErrUntrustedPeer
	}
	return d.telemetry.Peer.PeerPublicKey, nil
}

// Row returns the last decoded state for key, if any.
func (d *Dispatcher) Row(key string) (Row, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	row, ok := d.rows[key]
	return row, ok
}

// Rows returns a snapshot of every tracked row, for rendering a full
// console table.
func (d *Dispatcher) Rows() []Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Row, 0, len(d.rows))
	for _, row := range d.rows {
		out = append(out, row)
	}
	return out
}
