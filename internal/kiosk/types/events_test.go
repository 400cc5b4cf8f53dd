package types_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

func TestMarshal_StampsDiscriminator(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	data, err := json.Marshal(types.TagEvent{UID: "04A1B2", TS: ts, Source: types.SourceHardwareReader, Device: "kiosk-01"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "tag", m["type"])
	require.Equal(t, "04A1B2", m["uid"])
	require.NotContains(t, m, "isAdmin", "false flags must be omitted")
	require.NotContains(t, m, "memberFound", "unset memberFound must be omitted")
}

func TestMarshal_ExplicitMemberFoundFalse(t *testing.T) {
	data, err := json.Marshal(types.TagEvent{UID: "X", MemberFound: types.Bool(false)})
	require.NoError(t, err)
	require.Contains(t, string(data), `"memberFound":false`)
}

func TestDecode_EachKind(t *testing.T) {
	cases := map[string]types.Kind{
		`{"type":"tag","uid":"AA","ts":"2026-03-01T09:30:00.000Z","source":"acr122u","device":"k1"}`:      types.KindTag,
		`{"type":"reader","status":"attached","ts":"2026-03-01T09:30:00Z","source":"acr122u","device":"k1"}`: types.KindReader,
		`{"type":"heartbeat","ts":"2026-03-01T09:30:00Z","source":"acr122u","device":"k1"}`:                  types.KindHeartbeat,
		`{"type":"reader-error","ts":"2026-03-01T09:30:00Z","source":"acr122u","device":"k1","error":"x"}`:   types.KindReaderError,
	}
	for raw, want := range cases {
		ev, err := types.Decode([]byte(raw))
		require.NoError(t, err, raw)
		require.Equal(t, want, ev.Kind())
	}
}

func TestDecode_TagCarriesEnrichment(t *testing.T) {
	raw := `{"type":"tag","uid":"AA","ts":"2026-03-01T09:30:00.000Z","source":"manual","device":"k1",
		"memberFound":true,"member":{"id":"m1","firstName":"Ada","lastName":"L","roles":["vorstand"],"preferredTheme":"dark"}}`

	ev, err := types.Decode([]byte(raw))
	require.NoError(t, err)

	tag, ok := ev.(types.TagEvent)
	require.True(t, ok)
	require.True(t, tag.Found())
	require.NotNil(t, tag.Member)
	require.Equal(t, []string{"vorstand"}, tag.Member.Roles)
	require.Equal(t, "dark", tag.Member.PreferredTheme)
}

func TestDecode_RejectsMalformedAndUnknown(t *testing.T) {
	_, err := types.Decode([]byte(`not json`))
	require.True(t, errors.Is(err, types.ErrMalformed))

	_, err = types.Decode([]byte(`{"type":"tag","uid":"","ts":"2026-03-01T09:30:00Z","source":"acr122u","device":"k1"}`))
	require.True(t, errors.Is(err, types.ErrMalformed))

	_, err = types.Decode([]byte(`{"type":"reader","status":"unplugged","ts":"2026-03-01T09:30:00Z","source":"acr122u","device":"k1"}`))
	require.True(t, errors.Is(err, types.ErrMalformed))

	_, err = types.Decode([]byte(`{"type":"presence"}`))
	require.True(t, errors.Is(err, types.ErrUnknownKind))
}

func TestParseTimestamp(t *testing.T) {
	got, ok := types.ParseTimestamp("2026-03-01T10:30:00.123456+01:00")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC), got)

	got, ok = types.ParseTimestamp("2026-03-01")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, ok = types.ParseTimestamp("yesterday")
	require.False(t, ok)

	_, ok = types.ParseTimestamp("   ")
	require.False(t, ok)
}

func TestSubmission_ProtoWireForm(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	in := types.SubmissionFor(types.ReaderErrorEvent{TS: ts, Source: types.SourceHardwareReader, Device: "k1", Error: "card removed too early"})
	require.Equal(t, "2026-03-01T09:30:00.000Z", in.TS)

	var out types.Submission
	require.NoError(t, out.UnmarshalProto(in.MarshalProto()))
	require.Equal(t, in, out)
}

func TestSubmission_UnmarshalProtoRejectsTruncated(t *testing.T) {
	b := types.Submission{UID: "04A1B2C3"}.MarshalProto()

	var out types.Submission
	require.Error(t, out.UnmarshalProto(b[:len(b)-2]))
}
