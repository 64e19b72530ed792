// Package troll implements the adversarial TrollMutator: it subscribes
// to every topic on the broker, classifies each payload by value type,
// and republishes a single perturbed variant back to the same topic,
// using a digest cache to avoid reacting to its own republications.
package troll

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies how a payload was classified, driving which
// perturbation menu applies.
type Kind int

// Classification kinds, tried in the order the spec's classifier
// requires: a BLOB short-circuits everything else, then UTF-8 decoded
// text is tried against each typed grammar in turn before falling back
// to plain string.
const (
	KindBlob Kind = iota
	KindInt
	KindFloat
	KindDuration
	KindDateTime
	KindURI
	KindJSONObject
	KindJSONArray
	KindXML
	KindString
)

// blobThreshold mirrors the structural DoS guard telemetry enforces:
// anything over it is treated as an opaque BLOB rather than text.
const blobThreshold = 65536

// Classify determines which typed grammar a payload matches, in the
// fixed precedence order the spec names: size guard first, then
// UTF-8 validity, then int64, float, duration, date-time, absolute
// URI, JSON object, JSON array, XML document, else plain string.
func Classify(payload []byte) Kind {
	if len(payload) > blobThreshold {
		return KindBlob
	}
	if !utf8.Valid(payload) {
		return KindBlob
	}
	text := string(payload)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return KindString
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return KindInt
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return KindFloat
	}
	if _, err := time.ParseDuration(trimmed); err == nil {
		return KindDuration
	}
	if isDateTime(trimmed) {
		return KindDateTime
	}
	if isAbsoluteURI(trimmed) {
		return KindURI
	}
	if looksLikeJSONObject(trimmed) {
		return KindJSONObject
	}
	if looksLikeJSONArray(trimmed) {
		return KindJSONArray
	}
	if looksLikeXML(trimmed) {
		return KindXML
	}
	return KindString
}

func isDateTime(s string) bool {
	layouts := []string{time.RFC3339, "2006-01-02", "15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

func looksLikeJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

func looksLikeJSONArray(s string) bool {
	if !strings.HasPrefix(s, "[") {
		return false
	}
	var v []json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

func looksLikeXML(s string) bool {
	if !strings.HasPrefix(s, "<") {
		return false
	}
	decoder := xml.NewDecoder(strings.NewReader(s))
	for {
		_, err := decoder.Token()
		if err != nil {
			return errors.Is(err, io.EOF)
		}
	}
}
