package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/client"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// Logout reasons reported to the audit route.
const (
	ReasonTagScan       = "tag-scan"
	ReasonUserInitiated = "user-initiated"
)

// User is the authenticated kiosk user.
type User struct {
	MemberID       string // empty for allow-listed admin cards without a member
	FirstName      string
	LastName       string
	Role           Role
	PreferredTheme string
	UID            string
	Device         string
	Since          time.Time
}

// Notifier receives the session's user-visible outcomes.
type Notifier interface {
	LoggedIn(User)
	LoggedOut(u User, reason string)
	UnknownTag(types.TagEvent)
	InactiveUser(types.TagEvent)
	TagForAssignment(types.TagEvent)
}

// Auditor reports logouts to the gateway. *client.LogoutAuditor implements it.
type Auditor interface {
	Logout(ctx context.Context, memberID, reason string) error
}

// Identity is told who is signed in so outbound requests can carry it.
// *httpx.HeaderInjector implements it.
type Identity interface {
	SetUser(id, role string)
}

// State is a snapshot of the session and the auxiliary reader display.
type State struct {
	Locked            bool
	User              *User
	LastUID           string
	LastTS            time.Time
	LastHeartbeat     time.Time
	ReaderStatus      types.ReaderStatus // empty until the first reader event
	LastReaderError   string
	TagAssignmentMode bool
	Connection        client.Status
}

type Dependencies struct {
	Notifier Notifier
	Auditor  Auditor  // optional
	Identity Identity // optional
	Logger   *log.Logger
}

// Machine drives lock/unlock transitions from dispatched events. It
// implements client.Handler.
type Machine struct {
	notifier Notifier
	auditor  Auditor
	identity Identity
	logger   *log.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup
}

func NewMachine(d Dependencies) *Machine {
	return &Machine{
		notifier: d.Notifier,
		auditor:  d.Auditor,
		identity: d.Identity,
		logger:   d.Logger,
		now:      time.Now,
		state: State{
			Locked:     true,
			Connection: client.StatusDisconnected,
		},
	}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// SetTagAssignmentMode turns the assignment override on or off. While on,
// scans never log the current user out.
func (m *Machine) SetTagAssignmentMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TagAssignmentMode = enabled
}

// OnTag applies the scan rules in order: an authenticated session is
// logged out (or left alone in assignment mode); otherwise inactive and
// unknown cards are reported and anything else authenticates.
func (m *Machine) OnTag(ev types.TagEvent) {
	m.mu.Lock()

	if m.state.User != nil {
		if m.state.TagAssignmentMode {
			m.mu.Unlock()
			m.notifier.TagForAssignment(ev)
			return
		}
		m.state.LastUID = ev.UID
		m.state.LastTS = ev.TS
		prev := m.lockLocked()
		m.mu.Unlock()
		m.loggedOut(prev, ReasonTagScan)
		return
	}

	m.state.LastUID = ev.UID
	m.state.LastTS = ev.TS

	switch {
	case ev.IsInactive:
		m.mu.Unlock()
		m.notifier.InactiveUser(ev)

	case !ev.Found() && !ev.IsAdmin:
		m.mu.Unlock()
		m.notifier.UnknownTag(ev)

	default:
		u := m.userFor(ev)
		m.state.User = &u
		m.state.Locked = false
		m.mu.Unlock()

		if m.identity != nil {
			m.identity.SetUser(u.MemberID, string(u.Role))
		}
		m.logger.Printf("session started role=%s member=%s device=%s", u.Role, u.MemberID, u.Device)
		m.notifier.LoggedIn(u)
	}
}

// Logout ends the session on the user's request. It is a no-op when locked.
func (m *Machine) Logout(reason string) {
	if reason == "" {
		reason = ReasonUserInitiated
	}
	m.mu.Lock()
	prev := m.lockLocked()
	m.mu.Unlock()
	m.loggedOut(prev, reason)
}

func (m *Machine) OnReader(ev types.ReaderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ReaderStatus = ev.Status
}

func (m *Machine) OnHeartbeat(ev types.HeartbeatEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastHeartbeat = ev.TS
}

func (m *Machine) OnReaderError(ev types.ReaderErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastReaderError = ev.Error
}

func (m *Machine) OnStatus(s client.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Connection = s
}

// Wait blocks until pending logout audits have been sent.
func (m *Machine) Wait() {
	m.wg.Wait()
}

// lockLocked clears the session and returns the user that was signed in.
// Callers hold m.mu.
func (m *Machine) lockLocked() *User {
	prev := m.state.User
	m.state.User = nil
	m.state.Locked = true
	return prev
}

func (m *Machine) loggedOut(prev *User, reason string) {
	if prev == nil {
		return
	}
	if m.identity != nil {
		m.identity.SetUser("", "")
	}
	m.logger.Printf("session ended member=%s reason=%s", prev.MemberID, reason)
	m.notifier.LoggedOut(*prev, reason)

	if m.auditor == nil || prev.MemberID == "" {
		return
	}
	memberID := prev.MemberID
	m.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.auditor.Logout(ctx, memberID, reason); err != nil {
			m.logger.Printf("logout audit failed member=%s: %v", memberID, err)
		}
	})
}

func (m *Machine) userFor(ev types.TagEvent) User {
	u := User{
		UID:    ev.UID,
		Device: ev.Device,
		Since:  m.now().UTC(),
	}
	var roles []string
	if ev.Member != nil {
		u.MemberID = ev.Member.ID
		u.FirstName = ev.Member.FirstName
		u.LastName = ev.Member.LastName
		u.PreferredTheme = ev.Member.PreferredTheme
		roles = ev.Member.Roles
	}
	u.Role = ResolveRole(roles, ev.IsAdmin)
	return u
}
