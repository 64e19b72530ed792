// Package topics defines the fixed HardenMqtt/ topic namespace and the
// address builders for it, in the style of the reserved-keyword
// constant blocks of a node-discovery standard.
package topics

import "fmt"

// Root is the fixed namespace root every topic in this system lives under.
const Root = "HardenMqtt"

// Pairing is the single topic both pairing parties publish and subscribe to.
const Pairing = Root + "/Pairing"

// Events is the reserved topic for log/event publication. The troll
// avoids mutating and republishing to this topic to keep pedagogical
// output legible.
const Events = Root + "/Events"

// unsecuredRoot is the namespace prefix for the three unsecured
// presentations of telemetry.
const unsecuredRoot = Root + "/Unsecured"

// securedRoot is the namespace prefix for the two cryptographically
// protected presentations of telemetry.
const securedRoot = Root + "/Secured"

// Unstructured returns the topic for a single scalar field published
// in its unstructured, per-field string form.
func Unstructured(deviceID string, field string) string {
	return fmt.Sprintf("%s/Unstructured/%s/%s", unsecuredRoot, deviceID, field)
}

// UnstructuredWildcard matches every unstructured field topic for any device.
const UnstructuredWildcard = unsecuredRoot + "/Unstructured/+/+"

// Structured returns the topic for the JSON-encoded full reading.
func Structured(deviceID string) string {
	return fmt.Sprintf("%s/Structured/%s", unsecuredRoot, deviceID)
}

// StructuredWildcard matches every structured reading topic.
const StructuredWildcard = unsecuredRoot + "/Structured/+"

// Interoperable returns the topic for the unsigned interoperable XML payload.
func Interoperable(deviceID string) string {
	return fmt.Sprintf("%s/Interoperable/%s", unsecuredRoot, deviceID)
}

// InteroperableWildcard matches every interoperable XML topic.
const InteroperableWildcard = unsecuredRoot + "/Interoperable/+"

// SecuredPublic returns the topic for a signed XML payload, keyed by
// the publisher's Base64Url-encoded public key.
func SecuredPublic(base64urlPublicKey string) string {
	return fmt.Sprintf("%s/Public/%s", securedRoot, base64urlPublicKey)
}

// SecuredPublicWildcard matches every signed-public topic.
const SecuredPublicWildcard = securedRoot + "/Public/+"

// SecuredConfidential returns the topic for a signed and encrypted
// payload, keyed by the publisher's Base64Url-encoded public key.
func SecuredConfidential(base64urlPublicKey string) string {
	return fmt.Sprintf("%s/Confidential/%s", securedRoot, base64urlPublicKey)
}

// SecuredConfidentialWildcard matches every signed-confidential topic.
const SecuredConfidentialWildcard = securedRoot + "/Confidential/+"
