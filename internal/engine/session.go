package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State 会话状态
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateResolved       State = "resolved"
	StateError          State = "error"
)

// Snapshot 会话只读快照，页面与中间件只从这里读取
type Snapshot struct {
	State     State `json:"state"`
	Switching bool  `json:"switching"` // 租户切换进行中（旧快照保留，不闪回匿名）

	UserID                 uuid.UUID    `json:"user_id,omitempty"`
	Email                  string       `json:"email,omitempty"`
	Name                   string       `json:"name,omitempty"`
	HasCompletedOnboarding bool         `json:"has_completed_onboarding"`
	RequiresPasswordChange bool         `json:"requires_password_change"`
	Memberships            []Membership `json:"memberships,omitempty"`

	TenantID          uuid.UUID        `json:"tenant_id,omitempty"`
	Tenant            *TenantInfo      `json:"tenant,omitempty"`
	Role              Role             `json:"role,omitempty"`
	Context           *ResolvedContext `json:"context,omitempty"`
	Permissions       map[Module]bool  `json:"permissions,omitempty"`
	AssignmentPending bool             `json:"assignment_pending"`
	Trial             TrialStatus      `json:"trial"`
}

// Deps 会话依赖，全部显式注入
type Deps struct {
	Profiles    ProfileStore
	Tenants     TenantStore
	Assignments AssignmentStore
	Rules       RuleStore
	Contexts    ContextStore
	Mirror      ContextMirror // 可为nil
	Routes      RouteResolver // 可为nil
	Audit       *Emitter
	Log         *logrus.Logger
	Now         func() time.Time // 缺省time.Now
}

// Session 会话状态机：anonymous → authenticating → {resolved, error}
// 唯一持有可变会话状态的组件；租户/上下文切换按序号串行化，过期结果被丢弃
type Session struct {
	mu        sync.Mutex
	seq       uint64 // 单调递增的请求序号，后发请求隐式取代在途请求
	closed    bool   // 拆除后在途解析不得再写入状态
	deps      Deps
	resolver  *ContextResolver
	evaluator *Evaluator
	snap      Snapshot
}

// tenantState 单个租户的解析产物
type tenantState struct {
	role      Role
	context   *ResolvedContext
	evaluator *Evaluator
	tenant    *TenantInfo
	pending   bool
}

// NewSession 创建会话（初始为anonymous）
func NewSession(deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Audit == nil {
		deps.Audit = NewEmitter(nil, deps.Log)
	}
	return &Session{
		deps:      deps,
		resolver:  NewContextResolver(deps.Assignments, deps.Contexts, deps.Mirror, deps.Log),
		evaluator: DenyAll(),
		snap:      Snapshot{State: StateAnonymous},
	}
}

// Snapshot 返回当前快照；试用门禁状态每次读取都按当前时钟重新计算
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	if snap.Tenant != nil {
		snap.Trial = EvaluateTrial(snap.Tenant.SubscriptionStatus, snap.Tenant.TrialEndsAt, s.deps.Now())
	}
	return snap
}

// HasPermission 判定当前租户内某模块是否放行
// 上下文未解析完成时一律拒绝，绝不把加载中当作放行
func (s *Session) HasPermission(module Module) bool {
	s.mu.Lock()
	ev := s.evaluator
	s.mu.Unlock()
	return ev.HasPermission(module)
}

// ScopedLocationIDs 当前租户内数据查询必须过滤到的门店集合
func (s *Session) ScopedLocationIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Context == nil {
		return []uuid.UUID{}
	}
	ids := make([]uuid.UUID, len(s.snap.Context.AssignedLocationIDs))
	copy(ids, s.snap.Context.AssignedLocationIDs)
	return ids
}

// Authenticate 登录后的完整解析：档案（缺失时自愈一次）、成员关系、租户选择、上下文与权限
func (s *Session) Authenticate(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("会话已关闭")
	}
	s.seq++
	seq := s.seq
	s.snap = Snapshot{State: StateAuthenticating, UserID: userID}
	s.evaluator = DenyAll()
	s.mu.Unlock()

	// 档案加载，缺失时允许一次自动创建；再次失败则强制登出
	profile, err := s.deps.Profiles.Profile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		s.deps.Log.WithField("user_id", userID).Info("用户档案缺失，尝试自动创建")
		profile, err = s.deps.Profiles.CreateProfile(ctx, userID)
	}
	if err != nil {
		return s.fail(ctx, userID, seq, fmt.Errorf("加载用户档案失败: %w", err))
	}

	// 成员关系加载失败是暂时性故障：降级为无租户会话（全部拒绝），
	// 本地保存的租户与上下文偏好保留，待下次解析时恢复
	memberships, err := s.deps.Profiles.Memberships(ctx, userID)
	if err != nil {
		s.deps.Log.WithField("user_id", userID).Warnf("加载租户成员关系失败，降级为无租户会话: %v", err)
		memberships = nil
	}

	// 租户选择：最近使用的租户优先，否则取第一个
	tenantID, role := s.pickTenant(ctx, userID, memberships)

	var ts *tenantState
	if tenantID != uuid.Nil {
		ts = s.resolveTenant(ctx, userID, tenantID, role)
	}

	s.mu.Lock()
	if s.closed || s.seq != seq {
		// 已被更新的请求取代，丢弃本次结果
		snap := s.snap
		s.mu.Unlock()
		return snap, nil
	}
	s.snap.State = StateResolved
	s.snap.Email = profile.Email
	s.snap.Name = profile.Name
	s.snap.HasCompletedOnboarding = profile.HasCompletedOnboarding
	s.snap.RequiresPasswordChange = profile.RequiresPasswordChange
	s.snap.Memberships = memberships
	s.applyTenantLocked(tenantID, ts)
	s.mu.Unlock()

	if tenantID != uuid.Nil {
		if err := s.deps.Contexts.SetCurrentTenant(ctx, userID, tenantID); err != nil {
			s.deps.Log.Warnf("记录当前租户失败: %v", err)
		}
		s.deps.Audit.Log(tenantID, "auth.login", "user", userID.String(), map[string]interface{}{
			"role": string(role),
		})
	}
	return s.Snapshot(), nil
}

// SwitchTenant 切换当前租户并重新解析；在途切换被后发请求隐式取代
func (s *Session) SwitchTenant(ctx context.Context, tenantID uuid.UUID) (Snapshot, error) {
	return s.switchTenant(ctx, tenantID, true)
}

// switchTenant 租户切换与刷新的共用路径；刷新不产生切换审计事件
func (s *Session) switchTenant(ctx context.Context, tenantID uuid.UUID, emitAudit bool) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("会话已关闭")
	}
	if s.snap.State != StateResolved {
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("会话未就绪")
	}
	var role Role
	found := false
	for _, m := range s.snap.Memberships {
		if m.TenantID == tenantID {
			role = m.Role
			found = true
			break
		}
	}
	if !found {
		snap := s.snap
		s.mu.Unlock()
		return snap, fmt.Errorf("用户不是该租户的成员")
	}
	s.seq++
	seq := s.seq
	s.snap.Switching = true // 保留已解析的快照，只标记切换中
	userID := s.snap.UserID
	s.mu.Unlock()

	ts := s.resolveTenant(ctx, userID, tenantID, role)

	s.mu.Lock()
	if s.closed || s.seq != seq {
		snap := s.snap
		s.mu.Unlock()
		return snap, nil
	}
	s.snap.Switching = false
	s.applyTenantLocked(tenantID, ts)
	s.mu.Unlock()

	if err := s.deps.Contexts.SetCurrentTenant(ctx, userID, tenantID); err != nil {
		s.deps.Log.Warnf("记录当前租户失败: %v", err)
	}
	if emitAudit {
		s.deps.Audit.Log(tenantID, "context.switch", "tenant", tenantID.String(), map[string]interface{}{
			"kind": "tenant",
			"role": string(role),
		})
	}
	return s.Snapshot(), nil
}

// SwitchContext 在当前租户内切换活动上下文
// 目标必须在当前可选列表内；本地写入同步完成后镜像尽力同步
func (s *Session) SwitchContext(ctx context.Context, target ActiveContext) (Snapshot, error) {
	s.mu.Lock()
	if s.closed || s.snap.State != StateResolved || s.snap.Context == nil {
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("会话未就绪")
	}
	if !validate(&target, s.snap.Context.AvailableContexts, s.snap.Context.CanUseOwnerHub) {
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("目标上下文不可用")
	}
	s.seq++
	seq := s.seq
	userID := s.snap.UserID
	tenantID := s.snap.TenantID
	role := s.snap.Role
	s.mu.Unlock()

	if err := s.deps.Contexts.SaveContext(ctx, userID, tenantID, target); err != nil {
		s.deps.Log.Warnf("保存上下文偏好失败: %v", err)
	}
	if s.deps.Mirror != nil {
		go func() {
			syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.deps.Mirror.PushContext(syncCtx, userID, tenantID, target); err != nil {
				s.deps.Log.Warnf("同步上下文镜像失败: %v", err)
			}
		}()
	}

	s.mu.Lock()
	if s.closed || s.seq != seq {
		snap := s.snap
		s.mu.Unlock()
		return snap, nil
	}
	updated := *s.snap.Context
	updated.Type = target.Type
	updated.LocationID = target.LocationID
	s.snap.Context = &updated
	s.snap.AssignmentPending = role != RoleOwner && len(updated.AssignedLocationIDs) == 0
	s.mu.Unlock()

	entityID := tenantID.String()
	if target.Type == ContextLocation {
		entityID = target.LocationID.String()
	}
	s.deps.Audit.Log(tenantID, "context.switch", "context", entityID, map[string]interface{}{
		"type": string(target.Type),
	})
	return s.Snapshot(), nil
}

// Refresh 重新解析当前租户（角色/排班/规则变更后调用）；租户未变，不记录切换审计
func (s *Session) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	tenantID := s.snap.TenantID
	s.mu.Unlock()
	if tenantID == uuid.Nil {
		return s.Snapshot(), errors.New("会话未就绪")
	}
	return s.switchTenant(ctx, tenantID, false)
}

// FirstAllowedRoute 用户可落地的第一个模块路由
// 待分配锁定时无条件短路到固定路由；权威排序不可用或为空时回退到上下文类型默认值
func (s *Session) FirstAllowedRoute(ctx context.Context, contextType ContextType, locationID uuid.UUID) string {
	snap := s.Snapshot()
	if snap.AssignmentPending {
		return RouteAssignmentPending
	}

	ct := contextType
	if ct == ContextNone && snap.Context != nil {
		ct = snap.Context.Type
	}

	if snap.State == StateResolved && snap.TenantID != uuid.Nil && s.deps.Routes != nil {
		routes, err := s.deps.Routes.RankedRoutes(ctx, snap.TenantID, snap.UserID, ct, locationID)
		if err != nil {
			s.deps.Log.Warnf("加载权威落地路由失败，使用默认值: %v", err)
		} else {
			for _, route := range routes {
				if m, ok := ModuleByRoute(route); ok && s.HasPermission(m) {
					return route
				}
			}
		}
	}

	if ct == ContextOwnerHub {
		return RouteOverview
	}
	return RouteDashboard
}

// SignOut 登出：清空本地持久化的上下文与租户偏好，回到anonymous
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.seq++
	userID := s.snap.UserID
	s.snap = Snapshot{State: StateAnonymous}
	s.evaluator = DenyAll()
	s.mu.Unlock()

	if userID != uuid.Nil {
		if err := s.deps.Contexts.ClearAll(ctx, userID); err != nil {
			s.deps.Log.Warnf("清除本地会话状态失败: %v", err)
		}
	}
}

// Close 拆除会话；之后任何在途解析结果都不再写入状态
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// fail 不可恢复失败：强制登出并返回错误（档案自愈二次失败等数据完整性问题）
func (s *Session) fail(ctx context.Context, userID uuid.UUID, seq uint64, err error) (Snapshot, error) {
	s.deps.Log.WithField("user_id", userID).Errorf("会话解析失败，强制登出: %v", err)
	if cerr := s.deps.Contexts.ClearAll(ctx, userID); cerr != nil {
		s.deps.Log.Warnf("清除本地会话状态失败: %v", cerr)
	}

	s.mu.Lock()
	if !s.closed && s.seq == seq {
		s.snap = Snapshot{State: StateAnonymous}
		s.evaluator = DenyAll()
	}
	snap := s.snap
	s.mu.Unlock()
	return snap, err
}

// pickTenant 选择本次会话的租户：本地记录的最近租户优先，否则取第一个成员关系
func (s *Session) pickTenant(ctx context.Context, userID uuid.UUID, memberships []Membership) (uuid.UUID, Role) {
	if len(memberships) == 0 {
		return uuid.Nil, ""
	}

	stored, err := s.deps.Contexts.CurrentTenant(ctx, userID)
	if err != nil {
		s.deps.Log.Warnf("读取最近使用租户失败: %v", err)
	} else if stored != uuid.Nil {
		for _, m := range memberships {
			if m.TenantID == stored {
				return m.TenantID, m.Role
			}
		}
	}
	return memberships[0].TenantID, memberships[0].Role
}

// resolveTenant 解析单个租户：上下文、权限规则集、订阅信息、待分配状态
func (s *Session) resolveTenant(ctx context.Context, userID, tenantID uuid.UUID, role Role) *tenantState {
	rc, err := s.resolver.Resolve(ctx, userID, tenantID, role)
	if err != nil {
		s.deps.Log.Warnf("上下文解析失败: %v", err)
		rc = nil
	}

	// 规则集加载失败时降级为除owner外全部拒绝，与未知模块同向（绝不放行）
	var ev *Evaluator
	rolePerms, rerr := s.deps.Rules.RolePermissions(ctx, tenantID, role)
	overrides, oerr := s.deps.Rules.UserOverrides(ctx, tenantID, userID)
	if rerr != nil || oerr != nil {
		s.deps.Log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"user_id":   userID,
		}).Warn("加载权限规则集失败，降级为拒绝")
		ev = NewFailClosedEvaluator(role)
	} else {
		ev = NewEvaluator(role, rolePerms, overrides)
	}

	info, err := s.deps.Tenants.TenantInfo(ctx, tenantID)
	if err != nil {
		s.deps.Log.Warnf("加载租户信息失败: %v", err)
		info = nil
	}

	pending := role != RoleOwner && (rc == nil || len(rc.AssignedLocationIDs) == 0)

	return &tenantState{
		role:      role,
		context:   rc,
		evaluator: ev,
		tenant:    info,
		pending:   pending,
	}
}

// applyTenantLocked 将租户解析产物写入快照；调用方必须持有s.mu
func (s *Session) applyTenantLocked(tenantID uuid.UUID, ts *tenantState) {
	if ts == nil {
		s.snap.TenantID = uuid.Nil
		s.snap.Tenant = nil
		s.snap.Role = ""
		s.snap.Context = nil
		s.snap.Permissions = nil
		s.snap.AssignmentPending = false
		s.evaluator = DenyAll()
		return
	}
	s.snap.TenantID = tenantID
	s.snap.Tenant = ts.tenant
	s.snap.Role = ts.role
	s.snap.Context = ts.context
	s.snap.Permissions = ts.evaluator.Snapshot()
	s.snap.AssignmentPending = ts.pending
	s.evaluator = ts.evaluator
}
