package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Submission is the untyped body accepted by the ingest routes. Every field
// is optional at this layer; the ingest service decides what each kind
// requires.
type Submission struct {
	Type   string `json:"type,omitempty"`
	UID    string `json:"uid,omitempty"`
	TS     string `json:"ts,omitempty"`
	Source string `json:"source,omitempty"`
	Device string `json:"device,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LogoutSubmission is the body of the logout audit route.
type LogoutSubmission struct {
	MemberID string `json:"memberId"`
	Reason   string `json:"reason,omitempty"`
}

// SubmissionFor flattens an event into the shape the ingest routes accept.
func SubmissionFor(ev Event) Submission {
	switch e := ev.(type) {
	case TagEvent:
		return Submission{Type: string(KindTag), UID: e.UID, TS: formatTS(e), Source: string(e.Source), Device: e.Device}
	case ReaderEvent:
		return Submission{Type: string(KindReader), Status: string(e.Status), TS: formatTS(e), Source: string(e.Source), Device: e.Device}
	case HeartbeatEvent:
		return Submission{Type: string(KindHeartbeat), TS: formatTS(e), Source: string(e.Source), Device: e.Device}
	case ReaderErrorEvent:
		return Submission{Type: string(KindReaderError), TS: formatTS(e), Source: string(e.Source), Device: e.Device, Error: e.Error}
	}
	return Submission{}
}

// TimestampLayout matches the millisecond ISO-8601 strings browsers emit.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTS(ev Event) string {
	if ev.At().IsZero() {
		return ""
	}
	return ev.At().UTC().Format(TimestampLayout)
}

// ── Protobuf wire form ───────────────────────────────────────────────────────
//
// Constrained readers post submissions as a flat protobuf message:
//
//	message Submission {
//	  string type   = 1;
//	  string uid    = 2;
//	  string ts     = 3;
//	  string source = 4;
//	  string device = 5;
//	  string status = 6;
//	  string error  = 7;
//	}

const (
	fieldType protowire.Number = iota + 1
	fieldUID
	fieldTS
	fieldSource
	fieldDevice
	fieldStatus
	fieldError
)

// MarshalProto encodes s in the protobuf wire form. Empty fields are
// omitted, as proto3 does for default values.
func (s Submission) MarshalProto() []byte {
	var b []byte
	b = appendString(b, fieldType, s.Type)
	b = appendString(b, fieldUID, s.UID)
	b = appendString(b, fieldTS, s.TS)
	b = appendString(b, fieldSource, s.Source)
	b = appendString(b, fieldDevice, s.Device)
	b = appendString(b, fieldStatus, s.Status)
	b = appendString(b, fieldError, s.Error)
	return b
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// UnmarshalProto decodes the protobuf wire form. Unknown fields are skipped.
func (s *Submission) UnmarshalProto(b []byte) error {
	*s = Submission{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("submission tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("submission field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return fmt.Errorf("submission field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldType:
			s.Type = v
		case fieldUID:
			s.UID = v
		case fieldTS:
			s.TS = v
		case fieldSource:
			s.Source = v
		case fieldDevice:
			s.Device = v
		case fieldStatus:
			s.Status = v
		case fieldError:
			s.Error = v
		}
	}
	return nil
}
