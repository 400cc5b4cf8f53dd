package session_test

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/kioskauth/internal/client"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
	"github.com/BrandonDHaskell/kioskauth/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// Test helpers
// ═══════════════════════════════════════════════════════════════════════════════

type recordingNotifier struct {
	loggedIn   []session.User
	loggedOut  []string
	unknown    []string
	inactive   []string
	assignment []string
}

func (n *recordingNotifier) LoggedIn(u session.User)            { n.loggedIn = append(n.loggedIn, u) }
func (n *recordingNotifier) LoggedOut(_ session.User, r string) { n.loggedOut = append(n.loggedOut, r) }
func (n *recordingNotifier) UnknownTag(ev types.TagEvent)       { n.unknown = append(n.unknown, ev.UID) }
func (n *recordingNotifier) InactiveUser(ev types.TagEvent)     { n.inactive = append(n.inactive, ev.UID) }
func (n *recordingNotifier) TagForAssignment(ev types.TagEvent) { n.assignment = append(n.assignment, ev.UID) }

type recordingAuditor struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingAuditor) Logout(_ context.Context, memberID, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, memberID+"/"+reason)
	return nil
}

type recordingIdentity struct{ id, role string }

func (i *recordingIdentity) SetUser(id, role string) { i.id, i.role = id, role }

type fixture struct {
	m        *session.Machine
	notifier *recordingNotifier
	auditor  *recordingAuditor
	identity *recordingIdentity
}

func newFixture() *fixture {
	f := &fixture{
		notifier: &recordingNotifier{},
		auditor:  &recordingAuditor{},
		identity: &recordingIdentity{},
	}
	f.m = session.NewMachine(session.Dependencies{
		Notifier: f.notifier,
		Auditor:  f.auditor,
		Identity: f.identity,
		Logger:   log.New(io.Discard, "", 0),
	})
	return f
}

var ts0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func memberTag(uid, id string, roles ...string) types.TagEvent {
	return types.TagEvent{
		UID: uid, TS: ts0, Source: types.SourceHardwareReader, Device: "kiosk-01",
		MemberFound: types.Bool(true),
		Member:      &types.MemberSummary{ID: id, FirstName: "Ada", Roles: roles, PreferredTheme: "dark"},
	}
}

// Compile-time check that the machine can be driven by the connection manager.
var _ client.Handler = (*session.Machine)(nil)

// ═══════════════════════════════════════════════════════════════════════════════
// Role resolution
// ═══════════════════════════════════════════════════════════════════════════════

func TestResolveRole(t *testing.T) {
	cases := []struct {
		roles   []string
		isAdmin bool
		want    session.Role
	}{
		{[]string{"mitglied"}, false, session.RoleMitglied},
		{[]string{"mitglied", "bereichsleitung"}, false, session.RoleBereichsleitung},
		{[]string{"bereichsleitung", "Vorstand"}, false, session.RoleVorstand},
		{[]string{"mitglied", "admin", "vorstand"}, false, session.RoleAdmin},
		{[]string{"mitglied"}, true, session.RoleAdmin},
		{nil, true, session.RoleAdmin},
		{[]string{"gast"}, false, session.RoleMitglied},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, session.ResolveRole(tc.roles, tc.isAdmin), "%v admin=%t", tc.roles, tc.isAdmin)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Tag transitions
// ═══════════════════════════════════════════════════════════════════════════════

func TestOnTag_ActiveMemberAuthenticates(t *testing.T) {
	f := newFixture()

	f.m.OnTag(memberTag("T1", "m-1", "mitglied"))

	st := f.m.State()
	require.False(t, st.Locked)
	require.NotNil(t, st.User)
	require.Equal(t, session.RoleMitglied, st.User.Role)
	require.Equal(t, "dark", st.User.PreferredTheme)
	require.Equal(t, "T1", st.LastUID)
	require.Len(t, f.notifier.loggedIn, 1)
	require.Equal(t, "m-1", f.identity.id)
	require.Equal(t, "mitglied", f.identity.role)
}

func TestOnTag_AdminOnlyAuthenticatesAsAdmin(t *testing.T) {
	f := newFixture()

	f.m.OnTag(types.TagEvent{UID: "ADM", TS: ts0, IsAdmin: true, MemberFound: types.Bool(false)})

	st := f.m.State()
	require.False(t, st.Locked)
	require.Equal(t, session.RoleAdmin, st.User.Role)
	require.Empty(t, f.notifier.unknown, "admin cards are not unknown tags")
}

func TestOnTag_InactiveMemberIsNotAuthenticated(t *testing.T) {
	f := newFixture()
	ev := memberTag("T2", "m-2", "vorstand")
	ev.MemberFound = types.Bool(false)
	ev.IsInactive = true

	f.m.OnTag(ev)

	require.True(t, f.m.State().Locked)
	require.Equal(t, []string{"T2"}, f.notifier.inactive)
	require.Empty(t, f.notifier.loggedIn)
}

func TestOnTag_UnknownTagIsReported(t *testing.T) {
	f := newFixture()

	f.m.OnTag(types.TagEvent{UID: "X", TS: ts0, MemberFound: types.Bool(false)})

	require.True(t, f.m.State().Locked)
	require.Equal(t, []string{"X"}, f.notifier.unknown)
}

func TestOnTag_ScanWhileAuthenticatedLogsOutOnly(t *testing.T) {
	f := newFixture()
	f.m.OnTag(memberTag("T1", "m-1", "mitglied"))

	logoutScan := memberTag("T9", "m-9", "vorstand")
	logoutScan.TS = ts0.Add(time.Minute)
	f.m.OnTag(logoutScan)

	st := f.m.State()
	require.True(t, st.Locked)
	require.Nil(t, st.User)
	require.Equal(t, "T9", st.LastUID, "the logout scan is the last scan seen")
	require.Equal(t, logoutScan.TS, st.LastTS)
	require.Len(t, f.notifier.loggedIn, 1, "the logout scan must not log anyone in")
	require.Equal(t, []string{session.ReasonTagScan}, f.notifier.loggedOut)
	require.Empty(t, f.identity.id)

	f.m.Wait()
	require.Equal(t, []string{"m-1/tag-scan"}, f.auditor.calls)
}

func TestOnTag_AssignmentModeIgnoresScan(t *testing.T) {
	f := newFixture()
	f.m.OnTag(memberTag("T1", "m-1", "vorstand"))
	f.m.SetTagAssignmentMode(true)

	f.m.OnTag(types.TagEvent{UID: "NEW", TS: ts0, MemberFound: types.Bool(false)})

	st := f.m.State()
	require.False(t, st.Locked)
	require.Equal(t, "m-1", st.User.MemberID)
	require.Equal(t, []string{"NEW"}, f.notifier.assignment)
	require.Empty(t, f.notifier.unknown)
	require.Empty(t, f.notifier.loggedOut)

	f.m.SetTagAssignmentMode(false)
	f.m.OnTag(types.TagEvent{UID: "NEW", TS: ts0, MemberFound: types.Bool(false)})
	require.True(t, f.m.State().Locked)
}

func TestLogout_UserInitiated(t *testing.T) {
	f := newFixture()
	f.m.Logout("")
	require.Empty(t, f.notifier.loggedOut, "logout while locked is a no-op")

	f.m.OnTag(memberTag("T1", "m-1", "mitglied"))
	f.m.Logout("")

	require.True(t, f.m.State().Locked)
	require.Equal(t, []string{session.ReasonUserInitiated}, f.notifier.loggedOut)
	f.m.Wait()
	require.Equal(t, []string{"m-1/user-initiated"}, f.auditor.calls)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Auxiliary state
// ═══════════════════════════════════════════════════════════════════════════════

func TestAuxiliaryEventsNeverChangeLockState(t *testing.T) {
	f := newFixture()

	f.m.OnReader(types.ReaderEvent{Status: types.ReaderAttached, TS: ts0})
	f.m.OnHeartbeat(types.HeartbeatEvent{TS: ts0})
	f.m.OnReaderError(types.ReaderErrorEvent{TS: ts0, Error: "pcsc"})
	f.m.OnStatus(client.StatusConnected)

	st := f.m.State()
	require.True(t, st.Locked)
	require.Equal(t, types.ReaderAttached, st.ReaderStatus)
	require.Equal(t, ts0, st.LastHeartbeat)
	require.Equal(t, "pcsc", st.LastReaderError)
	require.Equal(t, client.StatusConnected, st.Connection)

	f.m.OnTag(memberTag("T1", "m-1", "mitglied"))
	f.m.OnReader(types.ReaderEvent{Status: types.ReaderDetached, TS: ts0})
	f.m.OnHeartbeat(types.HeartbeatEvent{TS: ts0.Add(time.Minute)})
	require.False(t, f.m.State().Locked)
}
