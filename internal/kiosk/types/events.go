package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the "type" discriminator carried by every event on the wire.
type Kind string

const (
	KindTag         Kind = "tag"
	KindReader      Kind = "reader"
	KindHeartbeat   Kind = "heartbeat"
	KindReaderError Kind = "reader-error"
)

// Source identifies what produced a card read.
type Source string

const (
	SourceHardwareReader Source = "acr122u"
	SourceWebNFC         Source = "webnfc"
	SourceManual         Source = "manual"
)

// Valid reports whether s is one of the accepted sources.
func (s Source) Valid() bool {
	switch s {
	case SourceHardwareReader, SourceWebNFC, SourceManual:
		return true
	}
	return false
}

type ReaderStatus string

const (
	ReaderAttached ReaderStatus = "attached"
	ReaderDetached ReaderStatus = "detached"
)

func (s ReaderStatus) Valid() bool {
	return s == ReaderAttached || s == ReaderDetached
}

// Event is the closed set of messages flowing from the bridge to the
// subscribers: TagEvent, ReaderEvent, HeartbeatEvent and ReaderErrorEvent.
type Event interface {
	Kind() Kind
	At() time.Time
	isEvent()
}

// MemberSummary is the member directory enrichment attached to tag events.
type MemberSummary struct {
	ID             string   `json:"id"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Roles          []string `json:"roles"`
	PreferredTheme string   `json:"preferredTheme,omitempty"`
}

type TagEvent struct {
	UID         string         `json:"uid"`
	TS          time.Time      `json:"ts"`
	Source      Source         `json:"source"`
	Device      string         `json:"device"`
	IsAdmin     bool           `json:"isAdmin,omitempty"`
	MemberFound *bool          `json:"memberFound,omitempty"`
	IsInactive  bool           `json:"isInactive,omitempty"`
	Member      *MemberSummary `json:"member,omitempty"`
}

// Found reports the memberFound flag; an unset flag reads as true so that
// events not yet enriched are not mistaken for unknown tags.
func (e TagEvent) Found() bool {
	return e.MemberFound == nil || *e.MemberFound
}

type ReaderEvent struct {
	Status ReaderStatus `json:"status"`
	TS     time.Time    `json:"ts"`
	Source Source       `json:"source"`
	Device string       `json:"device"`
}

type HeartbeatEvent struct {
	TS     time.Time `json:"ts"`
	Source Source    `json:"source"`
	Device string    `json:"device"`
}

type ReaderErrorEvent struct {
	TS     time.Time `json:"ts"`
	Source Source    `json:"source"`
	Device string    `json:"device"`
	Error  string    `json:"error"`
}

func (TagEvent) Kind() Kind         { return KindTag }
func (ReaderEvent) Kind() Kind      { return KindReader }
func (HeartbeatEvent) Kind() Kind   { return KindHeartbeat }
func (ReaderErrorEvent) Kind() Kind { return KindReaderError }

func (e TagEvent) At() time.Time         { return e.TS }
func (e ReaderEvent) At() time.Time      { return e.TS }
func (e HeartbeatEvent) At() time.Time   { return e.TS }
func (e ReaderErrorEvent) At() time.Time { return e.TS }

func (TagEvent) isEvent()         {}
func (ReaderEvent) isEvent()      {}
func (HeartbeatEvent) isEvent()   {}
func (ReaderErrorEvent) isEvent() {}

// The MarshalJSON methods stamp the discriminator so an event can never be
// serialised without (or with the wrong) "type".

func (e TagEvent) MarshalJSON() ([]byte, error) {
	type alias TagEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindTag, alias(e)})
}

func (e ReaderEvent) MarshalJSON() ([]byte, error) {
	type alias ReaderEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindReader, alias(e)})
}

func (e HeartbeatEvent) MarshalJSON() ([]byte, error) {
	type alias HeartbeatEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindHeartbeat, alias(e)})
}

func (e ReaderErrorEvent) MarshalJSON() ([]byte, error) {
	type alias ReaderErrorEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindReaderError, alias(e)})
}

// Canonical truncates t to millisecond precision in UTC, the resolution
// every producer on the wire uses.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 instant. Layouts without a zone are
// read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Canonical(t), true
		}
	}
	return time.Time{}, false
}

// Bool returns a pointer to v, for the optional flags on TagEvent.
func Bool(v bool) *bool { return &v }
