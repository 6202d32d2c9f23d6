package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type ctxKey struct {
	user   uuid.UUID
	tenant uuid.UUID
}

type fakeProfiles struct {
	mu             sync.Mutex
	profiles       map[uuid.UUID]*Profile
	memberships    map[uuid.UUID][]Membership
	membershipsErr error
	createErr      error
	createCalls    int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles:    make(map[uuid.UUID]*Profile),
		memberships: make(map[uuid.UUID][]Membership),
	}
}

func (f *fakeProfiles) Profile(_ context.Context, userID uuid.UUID) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) CreateProfile(_ context.Context, userID uuid.UUID) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := &Profile{ID: userID, Email: "healed@example.com", Name: "自愈用户"}
	f.profiles[userID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Memberships(_ context.Context, userID uuid.UUID) ([]Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.membershipsErr != nil {
		return nil, f.membershipsErr
	}
	return append([]Membership(nil), f.memberships[userID]...), nil
}

type fakeTenants struct {
	infos map[uuid.UUID]*TenantInfo
	err   error
}

func (f *fakeTenants) TenantInfo(_ context.Context, tenantID uuid.UUID) (*TenantInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[tenantID]
	if !ok {
		return nil, errors.New("租户不存在")
	}
	cp := *info
	return &cp, nil
}

type fakeAssignments struct {
	mu        sync.Mutex
	assigned  map[ctxKey][]uuid.UUID
	locations map[uuid.UUID][]LocationInfo
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{
		assigned:  make(map[ctxKey][]uuid.UUID),
		locations: make(map[uuid.UUID][]LocationInfo),
	}
}

func (f *fakeAssignments) AssignedLocationIDs(_ context.Context, userID, tenantID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.assigned[ctxKey{userID, tenantID}]...), nil
}

func (f *fakeAssignments) TenantLocations(_ context.Context, tenantID uuid.UUID) ([]LocationInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LocationInfo(nil), f.locations[tenantID]...), nil
}

type fakeRules struct {
	rolePerms map[Role]map[Module]bool
	overrides map[uuid.UUID]map[Module]bool
	err       error
}

func newFakeRules() *fakeRules {
	return &fakeRules{
		rolePerms: make(map[Role]map[Module]bool),
		overrides: make(map[uuid.UUID]map[Module]bool),
	}
}

func (f *fakeRules) RolePermissions(_ context.Context, _ uuid.UUID, role Role) (map[Module]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rolePerms[role], nil
}

func (f *fakeRules) UserOverrides(_ context.Context, _ uuid.UUID, userID uuid.UUID) (map[Module]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.overrides[userID], nil
}

type fakeContextStore struct {
	mu       sync.Mutex
	contexts map[ctxKey]ActiveContext
	current  map[uuid.UUID]uuid.UUID
	cleared  map[uuid.UUID]int
}

func newFakeContextStore() *fakeContextStore {
	return &fakeContextStore{
		contexts: make(map[ctxKey]ActiveContext),
		current:  make(map[uuid.UUID]uuid.UUID),
		cleared:  make(map[uuid.UUID]int),
	}
}

func (f *fakeContextStore) LoadContext(_ context.Context, userID, tenantID uuid.UUID) (*ActiveContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ac, ok := f.contexts[ctxKey{userID, tenantID}]
	if !ok {
		return nil, nil
	}
	cp := ac
	return &cp, nil
}

func (f *fakeContextStore) SaveContext(_ context.Context, userID, tenantID uuid.UUID, ac ActiveContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts[ctxKey{userID, tenantID}] = ac
	return nil
}

func (f *fakeContextStore) CurrentTenant(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current[userID], nil
}

func (f *fakeContextStore) SetCurrentTenant(_ context.Context, userID, tenantID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current[userID] = tenantID
	return nil
}

func (f *fakeContextStore) ClearAll(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared[userID]++
	delete(f.current, userID)
	for k := range f.contexts {
		if k.user == userID {
			delete(f.contexts, k)
		}
	}
	return nil
}

func (f *fakeContextStore) clearCount(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared[userID]
}

type fakeMirror struct {
	mu     sync.Mutex
	def    *ActiveContext
	pushed []ActiveContext
}

func (f *fakeMirror) PushContext(_ context.Context, _, _ uuid.UUID, ac ActiveContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, ac)
	return nil
}

func (f *fakeMirror) DefaultContext(_ context.Context, _, _ uuid.UUID) (*ActiveContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.def == nil {
		return nil, nil
	}
	cp := *f.def
	return &cp, nil
}

type fakeRoutes struct {
	routes []string
	err    error
}

func (f *fakeRoutes) RankedRoutes(_ context.Context, _, _ uuid.UUID, _ ContextType, _ uuid.UUID) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.routes, nil
}

type fakeSink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (f *fakeSink) Write(_ context.Context, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fakeSink) last() AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[len(f.entries)-1]
}

// waitFor 轮询等待异步副作用（审计落库、镜像同步）完成
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// fixture 会话测试夹具
type fixture struct {
	profiles    *fakeProfiles
	tenants     *fakeTenants
	assignments *fakeAssignments
	rules       *fakeRules
	contexts    *fakeContextStore
	mirror      *fakeMirror
	routes      *fakeRoutes
	sink        *fakeSink
	now         time.Time
}

func newFixture() *fixture {
	return &fixture{
		profiles:    newFakeProfiles(),
		tenants:     &fakeTenants{infos: make(map[uuid.UUID]*TenantInfo)},
		assignments: newFakeAssignments(),
		rules:       newFakeRules(),
		contexts:    newFakeContextStore(),
		mirror:      &fakeMirror{},
		routes:      &fakeRoutes{},
		sink:        &fakeSink{},
		now:         time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) session() *Session {
	log := testLogger()
	return NewSession(Deps{
		Profiles:    f.profiles,
		Tenants:     f.tenants,
		Assignments: f.assignments,
		Rules:       f.rules,
		Contexts:    f.contexts,
		Mirror:      f.mirror,
		Routes:      f.routes,
		Audit:       NewEmitter(f.sink, log),
		Log:         log,
		Now:         func() time.Time { return f.now },
	})
}

// seedTenant 注册一个租户及其门店
func (f *fixture) seedTenant(name string, locations ...LocationInfo) uuid.UUID {
	id := uuid.New()
	f.tenants.infos[id] = &TenantInfo{ID: id, Name: name, Currency: "EUR", SubscriptionStatus: "active"}
	f.assignments.locations[id] = locations
	return id
}

// seedUser 注册用户档案与成员关系
func (f *fixture) seedUser(email string, memberships ...Membership) uuid.UUID {
	id := uuid.New()
	f.profiles.profiles[id] = &Profile{ID: id, Email: email, Name: email, HasCompletedOnboarding: true}
	f.profiles.memberships[id] = memberships
	return id
}

func loc(name string, isDefault bool) LocationInfo {
	return LocationInfo{ID: uuid.New(), Name: name, IsDefault: isDefault}
}
