package raidguard

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryGateway is an in-process Gateway backed by maps. It serves the
// sandbox command and tests; every mutation is recorded so callers can
// inspect what the engine did.
type MemoryGateway struct {
	mu     sync.Mutex
	botID  string
	failOp map[string]error

	channels   map[string][]Channel
	overwrites map[string]PermissionSnapshot
	members    map[string]map[string]*Member
	roles      map[string]map[string]bool
	invites    map[string][]Invite
	audit      map[string][]AuditEntry

	sent         []SentMessage
	deleted      []string
	timeouts     map[string]time.Duration
	kicked       []string
	banned       []string
	unbanned     []string
	inviteDenied map[string]bool
	purged       map[string]int
}

// SentMessage records one SendMessage or SendTransient call.
type SentMessage struct {
	ChannelID string
	Content   string
	TTL       time.Duration
}

func NewMemoryGateway(botID string) *MemoryGateway {
	return &MemoryGateway{
		botID:        botID,
		failOp:       make(map[string]error),
		channels:     make(map[string][]Channel),
		overwrites:   make(map[string]PermissionSnapshot),
		members:      make(map[string]map[string]*Member),
		roles:        make(map[string]map[string]bool),
		invites:      make(map[string][]Invite),
		audit:        make(map[string][]AuditEntry),
		timeouts:     make(map[string]time.Duration),
		inviteDenied: make(map[string]bool),
		purged:       make(map[string]int),
	}
}

func key2(a, b string) string { return a + "|" + b }

// FailOp makes the named gateway operation return err until cleared with a
// nil err. Used to exercise sweep and best-effort paths.
func (g *MemoryGateway) FailOp(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failOp, op)
		return
	}
	g.failOp[op] = err
}

func (g *MemoryGateway) fail(op string) error { return g.failOp[op] }

// Seeding helpers.

func (g *MemoryGateway) AddChannel(communityID string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[communityID] = append(g.channels[communityID], ch)
}

func (g *MemoryGateway) SetOverwrite(communityID, channelID string, snap PermissionSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overwrites[key2(communityID, channelID)] = snap
}

func (g *MemoryGateway) AddMember(communityID string, m Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.members[communityID] == nil {
		g.members[communityID] = make(map[string]*Member)
	}
	cp := m
	g.members[communityID][m.ID] = &cp
}

func (g *MemoryGateway) AddRole(communityID, roleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roles[communityID] == nil {
		g.roles[communityID] = make(map[string]bool)
	}
	g.roles[communityID][roleID] = true
}

func (g *MemoryGateway) AddInvite(communityID string, inv Invite) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invites[communityID] = append(g.invites[communityID], inv)
}

// AddAudit prepends an entry so the newest is first.
func (g *MemoryGateway) AddAudit(communityID string, entry AuditEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.audit[communityID] = append([]AuditEntry{entry}, g.audit[communityID]...)
}

// Inspection helpers.

func (g *MemoryGateway) Overwrite(communityID, channelID string) (PermissionSnapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap, ok := g.overwrites[key2(communityID, channelID)]
	return snap, ok
}

func (g *MemoryGateway) TimeoutFor(communityID, userID string) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.timeouts[key2(communityID, userID)]
	return d, ok
}

func (g *MemoryGateway) Kicked() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.kicked...)
}

func (g *MemoryGateway) Deleted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.deleted...)
}

func (g *MemoryGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}

func (g *MemoryGateway) InviteCreationDenied(communityID, channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inviteDenied[key2(communityID, channelID)]
}

// Gateway implementation.

func (g *MemoryGateway) BotID() string { return g.botID }

func (g *MemoryGateway) Channels(_ context.Context, communityID string) ([]Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("Channels"); err != nil {
		return nil, err
	}
	return append([]Channel(nil), g.channels[communityID]...), nil
}

func (g *MemoryGateway) EveryoneOverwrite(_ context.Context, communityID, channelID string) (PermissionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("EveryoneOverwrite"); err != nil {
		return PermissionSnapshot{}, err
	}
	return g.overwrites[key2(communityID, channelID)], nil
}

func (g *MemoryGateway) SetEveryoneOverwrite(_ context.Context, communityID, channelID string, snap PermissionSnapshot, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("SetEveryoneOverwrite"); err != nil {
		return err
	}
	g.overwrites[key2(communityID, channelID)] = snap
	return nil
}

func (g *MemoryGateway) ClearEveryoneOverwrite(_ context.Context, communityID, channelID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("ClearEveryoneOverwrite"); err != nil {
		return err
	}
	delete(g.overwrites, key2(communityID, channelID))
	return nil
}

func (g *MemoryGateway) DenyInviteCreation(_ context.Context, communityID, channelID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("DenyInviteCreation"); err != nil {
		return err
	}
	g.inviteDenied[key2(communityID, channelID)] = true
	return nil
}

func (g *MemoryGateway) Member(_ context.Context, communityID, userID string) (*Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("Member"); err != nil {
		return nil, err
	}
	m, ok := g.members[communityID][userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.RoleIDs = append([]string(nil), m.RoleIDs...)
	return &cp, nil
}

func (g *MemoryGateway) Members(_ context.Context, communityID string) ([]Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("Members"); err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(g.members[communityID]))
	for _, m := range g.members[communityID] {
		cp := *m
		cp.RoleIDs = append([]string(nil), m.RoleIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *MemoryGateway) RoleExists(_ context.Context, communityID, roleID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("RoleExists"); err != nil {
		return false, err
	}
	return g.roles[communityID][roleID], nil
}

func (g *MemoryGateway) GrantRole(_ context.Context, communityID, userID, roleID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("GrantRole"); err != nil {
		return err
	}
	m, ok := g.members[communityID][userID]
	if !ok {
		return nil
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (g *MemoryGateway) RevokeRole(_ context.Context, communityID, userID, roleID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("RevokeRole"); err != nil {
		return err
	}
	m, ok := g.members[communityID][userID]
	if !ok {
		return nil
	}
	out := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			out = append(out, id)
		}
	}
	m.RoleIDs = out
	return nil
}

func (g *MemoryGateway) SendMessage(_ context.Context, channelID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("SendMessage"); err != nil {
		return err
	}
	g.sent = append(g.sent, SentMessage{ChannelID: channelID, Content: content})
	return nil
}

func (g *MemoryGateway) SendTransient(_ context.Context, channelID, content string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("SendTransient"); err != nil {
		return err
	}
	g.sent = append(g.sent, SentMessage{ChannelID: channelID, Content: content, TTL: ttl})
	return nil
}

func (g *MemoryGateway) DeleteMessage(_ context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("DeleteMessage"); err != nil {
		return err
	}
	g.deleted = append(g.deleted, key2(channelID, messageID))
	return nil
}

func (g *MemoryGateway) PurgeMessages(_ context.Context, channelID string, limit int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("PurgeMessages"); err != nil {
		return 0, err
	}
	g.purged[channelID] += limit
	return limit, nil
}

func (g *MemoryGateway) TimeoutMember(_ context.Context, communityID, userID string, d time.Duration, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("TimeoutMember"); err != nil {
		return err
	}
	g.timeouts[key2(communityID, userID)] = d
	return nil
}

func (g *MemoryGateway) KickMember(_ context.Context, communityID, userID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("KickMember"); err != nil {
		return err
	}
	delete(g.members[communityID], userID)
	g.kicked = append(g.kicked, userID)
	return nil
}

func (g *MemoryGateway) BanMember(_ context.Context, communityID, userID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("BanMember"); err != nil {
		return err
	}
	delete(g.members[communityID], userID)
	g.banned = append(g.banned, userID)
	return nil
}

func (g *MemoryGateway) UnbanMember(_ context.Context, communityID, userID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("UnbanMember"); err != nil {
		return err
	}
	g.unbanned = append(g.unbanned, userID)
	return nil
}

func (g *MemoryGateway) Invites(_ context.Context, communityID string) ([]Invite, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("Invites"); err != nil {
		return nil, err
	}
	return append([]Invite(nil), g.invites[communityID]...), nil
}

func (g *MemoryGateway) DeleteInvite(_ context.Context, communityID, code, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("DeleteInvite"); err != nil {
		return err
	}
	out := g.invites[communityID][:0]
	for _, inv := range g.invites[communityID] {
		if inv.Code != code {
			out = append(out, inv)
		}
	}
	g.invites[communityID] = out
	return nil
}

func (g *MemoryGateway) AuditTrail(_ context.Context, communityID string, kind ActionKind, limit int) ([]AuditEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("AuditTrail"); err != nil {
		return nil, err
	}
	var out []AuditEntry
	for _, e := range g.audit[communityID] {
		if e.Kind != kind {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MemoryStateStore is an in-process StateStore for the sandbox and tests.
type MemoryStateStore struct {
	mu        sync.Mutex
	lockdowns map[string]*LockdownRecord
	config    *SecurityConfig
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{lockdowns: make(map[string]*LockdownRecord)}
}

func (s *MemoryStateStore) LoadLockdowns() (map[string]*LockdownRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*LockdownRecord, len(s.lockdowns))
	for k, v := range s.lockdowns {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (s *MemoryStateStore) SaveLockdowns(records map[string]*LockdownRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockdowns = make(map[string]*LockdownRecord, len(records))
	for k, v := range records {
		cp := *v
		s.lockdowns[k] = &cp
	}
	return nil
}

func (s *MemoryStateStore) LoadSecurityConfig() (*SecurityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, nil
	}
	cp := *s.config
	return &cp, nil
}

func (s *MemoryStateStore) SaveSecurityConfig(cfg *SecurityConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.config = &cp
	return nil
}

// MemoryWarningStore is an in-process WarningStore for the sandbox and tests.
type MemoryWarningStore struct {
	mu       sync.Mutex
	warnings []Warning
	cases    []CaseRecord
}

func NewMemoryWarningStore() *MemoryWarningStore {
	return &MemoryWarningStore{}
}

func (s *MemoryWarningStore) AddWarning(_ context.Context, w Warning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
	return nil
}

func (s *MemoryWarningStore) CountWarnings(_ context.Context, communityID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, w := range s.warnings {
		if w.CommunityID == communityID && w.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryWarningStore) ListWarnings(_ context.Context, communityID, userID string, limit int) ([]Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Warning
	for i := len(s.warnings) - 1; i >= 0; i-- {
		w := s.warnings[i]
		if w.CommunityID != communityID || w.UserID != userID {
			continue
		}
		out = append(out, w)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryWarningStore) AddCase(_ context.Context, c CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, c)
	return nil
}

func (s *MemoryWarningStore) NextCaseSeq(_ context.Context, communityID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for _, c := range s.cases {
		if c.CommunityID == communityID && c.Seq > max {
			max = c.Seq
		}
	}
	return max + 1, nil
}

func (s *MemoryWarningStore) Cases(communityID string) []CaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CaseRecord
	for _, c := range s.cases {
		if c.CommunityID == communityID {
			out = append(out, c)
		}
	}
	return out
}
