package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// Broadcaster fans an accepted event out to every live subscriber.
type Broadcaster interface {
	Broadcast(ev types.Event)
}

// IngestPolicy holds the configuration-driven parts of tag classification.
type IngestPolicy struct {
	// Production rejects UIDs starting with TestUIDPrefix.
	Production    bool
	TestUIDPrefix string
	Admins        store.AdminAllowList
}

type IngestDependencies struct {
	Directory   store.MemberDirectory
	Registry    *DeviceRegistry
	Audit       *AuditRecorder
	Broadcaster Broadcaster
	Policy      IngestPolicy
	Logger      *log.Logger
}

// IngestService validates raw submissions from bridges and other producers,
// enriches tag reads from the member directory, and hands every accepted
// event to the broadcaster.
type IngestService struct {
	directory   store.MemberDirectory
	registry    *DeviceRegistry
	audit       *AuditRecorder
	broadcaster Broadcaster
	policy      IngestPolicy
	logger      *log.Logger
	now         func() time.Time
}

func NewIngestService(d IngestDependencies) *IngestService {
	return &IngestService{
		directory:   d.Directory,
		registry:    d.Registry,
		audit:       d.Audit,
		broadcaster: d.Broadcaster,
		policy:      d.Policy,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// Ingest validates sub as an event of the given kind. headerDevice is the
// X-Device-ID request header, used when the body names no device.
func (s *IngestService) Ingest(ctx context.Context, kind types.Kind, sub types.Submission, headerDevice string) (types.Event, error) {
	switch kind {
	case types.KindTag:
		return s.IngestTag(ctx, sub, headerDevice)
	case types.KindReader:
		return s.IngestReader(ctx, sub, headerDevice)
	case types.KindHeartbeat:
		return s.IngestHeartbeat(ctx, sub, headerDevice)
	case types.KindReaderError:
		return s.IngestReaderError(ctx, sub, headerDevice)
	}
	return nil, ErrUnsupportedKind
}

func (s *IngestService) IngestTag(ctx context.Context, sub types.Submission, headerDevice string) (types.TagEvent, error) {
	h, err := s.header(types.KindTag, sub, headerDevice)
	if err != nil {
		return types.TagEvent{}, err
	}

	uid := strings.TrimSpace(sub.UID)
	if uid == "" {
		return types.TagEvent{}, ErrUIDRequired
	}
	if s.policy.Production && s.isTestUID(uid) {
		return types.TagEvent{}, ErrTestUIDRejected
	}

	ev := types.TagEvent{
		UID:    uid,
		TS:     h.ts,
		Source: h.source,
		Device: h.device,
	}
	entry := s.classify(ctx, &ev)

	s.accept(ctx, ev, h.device)

	entry.Device = ev.Device
	entry.Source = string(ev.Source)
	entry.At = s.now().UTC()
	s.audit.Record(entry)

	return ev, nil
}

func (s *IngestService) IngestReader(ctx context.Context, sub types.Submission, headerDevice string) (types.ReaderEvent, error) {
	h, err := s.header(types.KindReader, sub, headerDevice)
	if err != nil {
		return types.ReaderEvent{}, err
	}

	status := types.ReaderStatus(strings.TrimSpace(sub.Status))
	if !status.Valid() {
		return types.ReaderEvent{}, ErrInvalidStatus
	}

	ev := types.ReaderEvent{Status: status, TS: h.ts, Source: h.source, Device: h.device}
	s.accept(ctx, ev, h.device)
	return ev, nil
}

func (s *IngestService) IngestHeartbeat(ctx context.Context, sub types.Submission, headerDevice string) (types.HeartbeatEvent, error) {
	h, err := s.header(types.KindHeartbeat, sub, headerDevice)
	if err != nil {
		return types.HeartbeatEvent{}, err
	}

	ev := types.HeartbeatEvent{TS: h.ts, Source: h.source, Device: h.device}
	s.accept(ctx, ev, h.device)
	return ev, nil
}

func (s *IngestService) IngestReaderError(ctx context.Context, sub types.Submission, headerDevice string) (types.ReaderErrorEvent, error) {
	h, err := s.header(types.KindReaderError, sub, headerDevice)
	if err != nil {
		return types.ReaderErrorEvent{}, err
	}

	msg := strings.TrimSpace(sub.Error)
	if msg == "" {
		return types.ReaderErrorEvent{}, ErrErrorRequired
	}

	ev := types.ReaderErrorEvent{TS: h.ts, Source: h.source, Device: h.device, Error: msg}
	s.accept(ctx, ev, h.device)
	return ev, nil
}

// RecordLogout audits a client-side logout. Nothing is broadcast.
func (s *IngestService) RecordLogout(_ context.Context, sub types.LogoutSubmission, headerDevice string) error {
	memberID := strings.TrimSpace(sub.MemberID)
	if memberID == "" {
		return ErrMemberIDRequired
	}

	reason := strings.TrimSpace(sub.Reason)
	if reason == "" {
		reason = "user-initiated"
	}

	s.audit.Record(store.AuditEntry{
		Action:     store.ActionLogout,
		ActorID:    memberID,
		TargetType: "member",
		TargetID:   memberID,
		Device:     strings.TrimSpace(headerDevice),
		Reason:     reason,
		At:         s.now().UTC(),
	})
	return nil
}

// ── Normalisation ────────────────────────────────────────────────────────────

type eventHeader struct {
	ts     time.Time
	source types.Source
	device string
}

// header validates the fields every event kind shares.
func (s *IngestService) header(kind types.Kind, sub types.Submission, headerDevice string) (eventHeader, error) {
	if t := strings.TrimSpace(sub.Type); t != "" && types.Kind(t) != kind {
		return eventHeader{}, ErrTypeMismatch
	}

	ts := types.Canonical(s.now())
	if raw := strings.TrimSpace(sub.TS); raw != "" {
		parsed, ok := types.ParseTimestamp(raw)
		if !ok {
			return eventHeader{}, ErrInvalidTimestamp
		}
		ts = parsed
	}

	source := types.SourceHardwareReader
	if raw := strings.TrimSpace(sub.Source); raw != "" {
		source = types.Source(raw)
		if !source.Valid() {
			return eventHeader{}, ErrInvalidSource
		}
	}

	device := strings.TrimSpace(sub.Device)
	if device == "" {
		device = strings.TrimSpace(headerDevice)
	}
	if device == "" {
		device = "unknown"
	}

	return eventHeader{ts: ts, source: source, device: device}, nil
}

func (s *IngestService) isTestUID(uid string) bool {
	prefix := strings.ToLower(s.policy.TestUIDPrefix)
	return prefix != "" && strings.HasPrefix(strings.ToLower(uid), prefix)
}

// accept notes the device and broadcasts. Registry errors are not fatal to
// the event.
func (s *IngestService) accept(ctx context.Context, ev types.Event, device string) {
	if s.registry != nil {
		if err := s.registry.NoteSeen(ctx, device, ev.Kind()); err != nil {
			s.logger.Printf("device registry error device=%s: %v", device, err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ev)
	}
}

// ── Classification ───────────────────────────────────────────────────────────

// classify enriches ev in place and returns the audit entry describing the
// outcome. Precedence: inactive member, active member, admin UID, unknown.
// The admin allow-list is consulted independently of the directory, so an
// active member whose card is also allow-listed carries isAdmin as well.
func (s *IngestService) classify(ctx context.Context, ev *types.TagEvent) store.AuditEntry {
	isAdmin := s.policy.Admins.Contains(ev.UID)

	active := s.lookup(ctx, ev.UID, true)
	var anyRec *store.MemberRecord
	if active == nil {
		anyRec = s.lookup(ctx, ev.UID, false)
	}

	switch {
	case anyRec != nil && !anyRec.IsActive:
		ev.IsInactive = true
		ev.MemberFound = types.Bool(false)
		ev.Member = summary(anyRec)
		return store.AuditEntry{Action: store.ActionLoginInactive, ActorID: anyRec.ID, TargetType: "member", TargetID: anyRec.ID}

	case active != nil:
		ev.MemberFound = types.Bool(true)
		ev.Member = summary(active)
		ev.IsAdmin = isAdmin
		action := store.ActionLogin
		if isAdmin {
			action = store.ActionLoginAdminTag
		}
		return store.AuditEntry{Action: action, ActorID: active.ID, TargetType: "member", TargetID: active.ID}

	case isAdmin:
		ev.IsAdmin = true
		ev.MemberFound = types.Bool(false)
		return store.AuditEntry{Action: store.ActionLoginAdminTag, TargetType: "tag", TargetID: ev.UID}

	default:
		ev.MemberFound = types.Bool(false)
		return store.AuditEntry{Action: store.ActionLoginInvalid, TargetType: "tag", TargetID: ev.UID}
	}
}

// lookup treats directory failures as a miss; the scan is still broadcast.
func (s *IngestService) lookup(ctx context.Context, uid string, activeOnly bool) *store.MemberRecord {
	if s.directory == nil {
		return nil
	}
	rec, err := s.directory.LookupByTag(ctx, uid, activeOnly)
	if err != nil {
		s.logger.Printf("member lookup error uid=%s active_only=%t: %v", uid, activeOnly, err)
		return nil
	}
	return rec
}

func summary(m *store.MemberRecord) *types.MemberSummary {
	roles := make([]string, len(m.Roles))
	copy(roles, m.Roles)
	return &types.MemberSummary{
		ID:             m.ID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Roles:          roles,
		PreferredTheme: m.PreferredTheme,
	}
}
