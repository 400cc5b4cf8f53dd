package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("unknown event type")
	ErrMalformed   = errors.New("malformed event")
)

// Decode parses one wire message into its concrete Event. Messages with an
// unknown discriminator or missing required fields are rejected; callers on
// the receiving side are expected to discard them.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case KindTag:
		var e TagEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if e.UID == "" || e.TS.IsZero() || e.Source == "" || e.Device == "" {
			return nil, fmt.Errorf("%w: tag event missing required fields", ErrMalformed)
		}
		return e, nil

	case KindReader:
		var e ReaderEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if !e.Status.Valid() || e.TS.IsZero() || e.Source == "" || e.Device == "" {
			return nil, fmt.Errorf("%w: reader event missing required fields", ErrMalformed)
		}
		return e, nil

	case KindHeartbeat:
		var e HeartbeatEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if e.TS.IsZero() || e.Source == "" || e.Device == "" {
			return nil, fmt.Errorf("%w: heartbeat event missing required fields", ErrMalformed)
		}
		return e, nil

	case KindReaderError:
		var e ReaderErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if e.TS.IsZero() || e.Source == "" || e.Device == "" {
			return nil, fmt.Errorf("%w: reader-error event missing required fields", ErrMalformed)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}
}
