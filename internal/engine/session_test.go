package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAuthenticateResolvesManagerSession(t *testing.T) {
	f := newFixture()
	l1, l2 := loc("一号店", true), loc("二号店", false)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := f.seedUser("manager@salon.test", Membership{TenantID: tenantID, TenantName: "连锁", Role: RoleManager})
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID, l2.ID}

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	if snap.State != StateResolved {
		t.Fatalf("状态应为resolved，实际%s", snap.State)
	}
	if snap.TenantID != tenantID || snap.Role != RoleManager {
		t.Fatalf("租户/角色解析错误: %s/%s", snap.TenantID, snap.Role)
	}
	if snap.Context == nil || snap.Context.Type != ContextOwnerHub {
		t.Fatalf("两店经理应落到聚合视图: %+v", snap.Context)
	}
	if snap.AssignmentPending {
		t.Fatal("有排班的经理不应待分配锁定")
	}
	if len(snap.Permissions) != len(Catalog()) {
		t.Fatal("权限快照应覆盖全部模块")
	}
	if !s.HasPermission(ModuleCalendar) {
		t.Fatal("经理对calendar应放行")
	}

	// 登录审计即发即忘，轮询等待落库
	if !waitFor(func() bool { return f.sink.count() >= 1 }) {
		t.Fatal("登录后应产生审计记录")
	}
	entry := f.sink.last()
	if entry.Action != "auth.login" || entry.EntityID != userID {
		t.Fatalf("审计记录错误: %+v", entry)
	}
}

func TestProfileSelfHealOnce(t *testing.T) {
	// 档案缺失时自动创建一次
	f := newFixture()
	tenantID := f.seedTenant("连锁", loc("一号店", true))
	userID := uuid.New()
	f.profiles.memberships[userID] = []Membership{{TenantID: tenantID, Role: RoleOwner}}

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("自愈后Authenticate应成功: %v", err)
	}
	if snap.State != StateResolved {
		t.Fatalf("状态应为resolved，实际%s", snap.State)
	}
	if f.profiles.createCalls != 1 {
		t.Fatalf("档案创建应恰好调用一次，实际%d次", f.profiles.createCalls)
	}
}

func TestProfileSelfHealFailureForcesSignOut(t *testing.T) {
	// 自愈也失败属于数据完整性问题，强制登出并清除本地状态
	f := newFixture()
	userID := uuid.New()
	f.profiles.createErr = errors.New("唯一约束冲突")

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err == nil {
		t.Fatal("自愈失败应返回错误")
	}
	if snap.State != StateAnonymous {
		t.Fatalf("强制登出后状态应为anonymous，实际%s", snap.State)
	}
	if f.contexts.clearCount(userID) == 0 {
		t.Fatal("强制登出必须清除本地持久化状态")
	}
	if s.HasPermission(ModuleDashboard) {
		t.Fatal("登出后权限判定必须拒绝")
	}
}

func TestAuthenticatePrefersStoredTenant(t *testing.T) {
	f := newFixture()
	t1 := f.seedTenant("甲店", loc("门店A", true))
	t2 := f.seedTenant("乙店", loc("门店B", true))
	userID := f.seedUser("owner@salon.test",
		Membership{TenantID: t1, Role: RoleOwner},
		Membership{TenantID: t2, Role: RoleOwner})
	_ = f.contexts.SetCurrentTenant(context.Background(), userID, t2)

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if snap.TenantID != t2 {
		t.Fatalf("应优先恢复最近使用的租户，实际%s", snap.TenantID)
	}
}

func TestAuthenticateNoMemberships(t *testing.T) {
	f := newFixture()
	userID := f.seedUser("orphan@salon.test")

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if snap.State != StateResolved {
		t.Fatalf("无成员关系也应完成解析，实际%s", snap.State)
	}
	if snap.TenantID != uuid.Nil || snap.Context != nil {
		t.Fatal("无成员关系时不应有租户上下文")
	}
	if s.HasPermission(ModuleDashboard) {
		t.Fatal("无租户时权限判定必须拒绝")
	}
}

func TestMembershipsLoadFailureKeepsLocalState(t *testing.T) {
	f := newFixture()
	t1 := f.seedTenant("甲店", loc("门店A", true))
	userID := f.seedUser("owner@salon.test", Membership{TenantID: t1, Role: RoleOwner})
	_ = f.contexts.SetCurrentTenant(context.Background(), userID, t1)
	_ = f.contexts.SaveContext(context.Background(), userID, t1, ActiveContext{Type: ContextOwnerHub})
	f.profiles.membershipsErr = errors.New("连接超时")

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("暂时性故障不应作为错误返回: %v", err)
	}
	if snap.State != StateResolved {
		t.Fatalf("应降级为无租户会话，实际%s", snap.State)
	}
	if snap.TenantID != uuid.Nil {
		t.Fatal("降级会话不应绑定租户")
	}
	if s.HasPermission(ModuleDashboard) {
		t.Fatal("降级会话权限判定必须拒绝")
	}
	if f.contexts.clearCount(userID) != 0 {
		t.Fatal("暂时性故障不得清除本地持久化状态")
	}

	// 本地偏好完整保留，故障恢复后按原租户/上下文继续
	cur, _ := f.contexts.CurrentTenant(context.Background(), userID)
	if cur != t1 {
		t.Fatalf("最近租户偏好应保留，实际%s", cur)
	}
	stored, _ := f.contexts.LoadContext(context.Background(), userID, t1)
	if stored == nil || stored.Type != ContextOwnerHub {
		t.Fatal("上下文偏好应保留")
	}

	f.profiles.membershipsErr = nil
	snap, err = s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("恢复后Authenticate失败: %v", err)
	}
	if snap.TenantID != t1 {
		t.Fatalf("恢复后应回到保留的租户，实际%s", snap.TenantID)
	}
}

func TestSwitchTenantRebuildsPermissions(t *testing.T) {
	f := newFixture()
	lA, lB := loc("门店A", true), loc("门店B", true)
	t1 := f.seedTenant("甲店", lA)
	t2 := f.seedTenant("乙店", lB)
	userID := f.seedUser("user@salon.test",
		Membership{TenantID: t1, Role: RoleManager},
		Membership{TenantID: t2, Role: RoleStaff})
	f.assignments.assigned[ctxKey{userID, t1}] = []uuid.UUID{lA.ID}
	f.assignments.assigned[ctxKey{userID, t2}] = []uuid.UUID{lB.ID}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if !s.HasPermission(ModuleReports) {
		t.Fatal("甲店经理对reports应放行")
	}

	snap, err := s.SwitchTenant(context.Background(), t2)
	if err != nil {
		t.Fatalf("SwitchTenant失败: %v", err)
	}
	if snap.TenantID != t2 || snap.Role != RoleStaff {
		t.Fatalf("切换后租户/角色错误: %s/%s", snap.TenantID, snap.Role)
	}
	if snap.Switching {
		t.Fatal("切换完成后Switching应复位")
	}
	if s.HasPermission(ModuleReports) {
		t.Fatal("乙店员工对reports应拒绝，规则集必须按新租户重建")
	}

	// 最近租户随切换更新
	cur, _ := f.contexts.CurrentTenant(context.Background(), userID)
	if cur != t2 {
		t.Fatalf("最近租户应更新为乙店，实际%s", cur)
	}
}

func TestSwitchTenantNotMember(t *testing.T) {
	f := newFixture()
	t1 := f.seedTenant("甲店", loc("门店A", true))
	userID := f.seedUser("user@salon.test", Membership{TenantID: t1, Role: RoleOwner})

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if _, err := s.SwitchTenant(context.Background(), uuid.New()); err == nil {
		t.Fatal("切换到非成员租户应报错")
	}
}

func TestRefreshDoesNotEmitSwitchAudit(t *testing.T) {
	f := newFixture()
	lA := loc("门店A", true)
	t1 := f.seedTenant("甲店", lA)
	userID := f.seedUser("manager@salon.test", Membership{TenantID: t1, Role: RoleManager})
	f.assignments.assigned[ctxKey{userID, t1}] = []uuid.UUID{lA.ID}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if !waitFor(func() bool { return f.sink.count() == 1 }) {
		t.Fatal("登录审计事件未落库")
	}
	if !s.HasPermission(ModuleReports) {
		t.Fatal("经理对reports应放行")
	}

	// 管理端收紧规则后刷新：规则集重建，但租户未变，不产生切换审计
	f.rules.rolePerms[RoleManager] = map[Module]bool{ModuleReports: false}
	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh失败: %v", err)
	}
	if snap.TenantID != t1 {
		t.Fatalf("刷新不应改变当前租户，实际%s", snap.TenantID)
	}
	if s.HasPermission(ModuleReports) {
		t.Fatal("刷新后应采用新规则集")
	}

	time.Sleep(50 * time.Millisecond)
	if n := f.sink.count(); n != 1 {
		t.Fatalf("刷新不应产生审计事件，事件数=%d", n)
	}
}

func TestSwitchContext(t *testing.T) {
	f := newFixture()
	l1, l2 := loc("一号店", true), loc("二号店", false)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := f.seedUser("manager@salon.test", Membership{TenantID: tenantID, Role: RoleManager})
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID, l2.ID}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	snap, err := s.SwitchContext(context.Background(), ActiveContext{Type: ContextLocation, LocationID: l2.ID})
	if err != nil {
		t.Fatalf("SwitchContext失败: %v", err)
	}
	if snap.Context.Type != ContextLocation || snap.Context.LocationID != l2.ID {
		t.Fatalf("上下文未切换: %+v", snap.Context)
	}

	// 本地存储同步写入
	saved := f.contexts.contexts[ctxKey{userID, tenantID}]
	if saved.Type != ContextLocation || saved.LocationID != l2.ID {
		t.Fatalf("切换结果应同步写入本地存储: %+v", saved)
	}
}

func TestSwitchContextRejectsUnavailableTarget(t *testing.T) {
	f := newFixture()
	l1 := loc("一号店", true)
	tenantID := f.seedTenant("连锁", l1)
	userID := f.seedUser("staff@salon.test", Membership{TenantID: tenantID, Role: RoleStaff})
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	// 员工无聚合资格
	if _, err := s.SwitchContext(context.Background(), ActiveContext{Type: ContextOwnerHub}); err == nil {
		t.Fatal("无资格的聚合视图切换应报错")
	}
	// 未排班门店
	if _, err := s.SwitchContext(context.Background(), ActiveContext{Type: ContextLocation, LocationID: uuid.New()}); err == nil {
		t.Fatal("切换到未排班门店应报错")
	}
}

func TestAssignmentPending(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		assigned int
		want     bool
	}{
		{"前台无排班", RoleReceptionist, 0, true},
		{"员工无排班", RoleStaff, 0, true},
		{"员工有排班", RoleStaff, 1, false},
		{"owner无门店不锁定", RoleOwner, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			locs := make([]LocationInfo, 0, tt.assigned)
			for i := 0; i < tt.assigned; i++ {
				locs = append(locs, loc("门店", i == 0))
			}
			var tenantID uuid.UUID
			if tt.role == RoleOwner {
				tenantID = f.seedTenant("空租户")
			} else {
				tenantID = f.seedTenant("连锁", append(locs, loc("他店", false))...)
			}
			userID := f.seedUser("u@salon.test", Membership{TenantID: tenantID, Role: tt.role})
			ids := make([]uuid.UUID, 0, tt.assigned)
			for _, l := range locs {
				ids = append(ids, l.ID)
			}
			f.assignments.assigned[ctxKey{userID, tenantID}] = ids

			s := f.session()
			snap, err := s.Authenticate(context.Background(), userID)
			if err != nil {
				t.Fatalf("Authenticate失败: %v", err)
			}
			if snap.AssignmentPending != tt.want {
				t.Fatalf("AssignmentPending = %v, 期望 %v", snap.AssignmentPending, tt.want)
			}
		})
	}
}

func TestFirstAllowedRouteAssignmentPendingShortCircuit(t *testing.T) {
	f := newFixture()
	tenantID := f.seedTenant("连锁", loc("一号店", true))
	userID := f.seedUser("r@salon.test", Membership{TenantID: tenantID, Role: RoleReceptionist})
	f.routes.routes = []string{"/dashboard", "/calendar"}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	// 无论请求哪种上下文类型都短路到待分配路由
	for _, ct := range []ContextType{ContextOwnerHub, ContextLocation, ContextNone} {
		if got := s.FirstAllowedRoute(context.Background(), ct, uuid.Nil); got != RouteAssignmentPending {
			t.Fatalf("待分配锁定时FirstAllowedRoute(%s) = %s", ct, got)
		}
	}
}

func TestFirstAllowedRouteSkipsDeniedModules(t *testing.T) {
	f := newFixture()
	l1 := loc("一号店", true)
	tenantID := f.seedTenant("连锁", l1)
	userID := f.seedUser("r@salon.test", Membership{TenantID: tenantID, Role: RoleReceptionist})
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID}
	// 排序首位reports对前台默认拒绝，应跳到calendar
	f.routes.routes = []string{"/reports", "/calendar", "/dashboard"}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	if got := s.FirstAllowedRoute(context.Background(), ContextLocation, l1.ID); got != "/calendar" {
		t.Fatalf("应跳过被拒绝的模块路由，实际%s", got)
	}
}

func TestFirstAllowedRouteFallback(t *testing.T) {
	f := newFixture()
	l1, l2 := loc("一号店", true), loc("二号店", false)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := f.seedUser("o@salon.test", Membership{TenantID: tenantID, Role: RoleOwner})
	f.routes.err = errors.New("权威排序不可用")

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	if got := s.FirstAllowedRoute(context.Background(), ContextOwnerHub, uuid.Nil); got != RouteOverview {
		t.Fatalf("聚合视图兜底应为%s，实际%s", RouteOverview, got)
	}
	if got := s.FirstAllowedRoute(context.Background(), ContextLocation, l1.ID); got != RouteDashboard {
		t.Fatalf("门店视图兜底应为%s，实际%s", RouteDashboard, got)
	}
}

func TestScopedLocationIDs(t *testing.T) {
	f := newFixture()
	l1, l2, l3 := loc("一号店", true), loc("二号店", false), loc("三号店", false)
	tenantID := f.seedTenant("连锁", l1, l2, l3)

	// 非owner：精确等于排班集合
	staffID := f.seedUser("s@salon.test", Membership{TenantID: tenantID, Role: RoleStaff})
	f.assignments.assigned[ctxKey{staffID, tenantID}] = []uuid.UUID{l2.ID}

	s := f.session()
	if _, err := s.Authenticate(context.Background(), staffID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	scoped := s.ScopedLocationIDs()
	if len(scoped) != 1 || scoped[0] != l2.ID {
		t.Fatalf("员工范围应精确等于排班集合: %v", scoped)
	}

	// owner：租户全部门店
	ownerID := f.seedUser("o@salon.test", Membership{TenantID: tenantID, Role: RoleOwner})
	s2 := f.session()
	if _, err := s2.Authenticate(context.Background(), ownerID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if got := s2.ScopedLocationIDs(); len(got) != 3 {
		t.Fatalf("owner范围应为全部3家门店: %v", got)
	}
}

func TestRuleLoadFailureFailsClosed(t *testing.T) {
	f := newFixture()
	l1 := loc("一号店", true)
	tenantID := f.seedTenant("连锁", l1)
	userID := f.seedUser("m@salon.test", Membership{TenantID: tenantID, Role: RoleManager})
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID}
	f.rules.err = errors.New("数据库不可用")

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("规则加载失败不应中断会话解析: %v", err)
	}
	if snap.State != StateResolved {
		t.Fatalf("状态应为resolved，实际%s", snap.State)
	}
	if s.HasPermission(ModuleDashboard) {
		t.Fatal("规则集不可用时非owner必须降级为拒绝")
	}
}

func TestSignOutClearsLocalState(t *testing.T) {
	f := newFixture()
	tenantID := f.seedTenant("连锁", loc("一号店", true))
	userID := f.seedUser("o@salon.test", Membership{TenantID: tenantID, Role: RoleOwner})

	s := f.session()
	if _, err := s.Authenticate(context.Background(), userID); err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}

	s.SignOut(context.Background())

	if got := s.Snapshot(); got.State != StateAnonymous {
		t.Fatalf("登出后状态应为anonymous，实际%s", got.State)
	}
	if s.HasPermission(ModuleDashboard) {
		t.Fatal("登出后权限判定必须拒绝")
	}
	if f.contexts.clearCount(userID) == 0 {
		t.Fatal("登出必须清除本地持久化状态")
	}
}

func TestClosedSessionRejectsWrites(t *testing.T) {
	f := newFixture()
	tenantID := f.seedTenant("连锁", loc("一号店", true))
	userID := f.seedUser("o@salon.test", Membership{TenantID: tenantID, Role: RoleOwner})

	s := f.session()
	s.Close()
	if _, err := s.Authenticate(context.Background(), userID); err == nil {
		t.Fatal("已关闭的会话不应接受认证")
	}
}

func TestTrialRecomputedOnEveryRead(t *testing.T) {
	f := newFixture()
	endsAt := f.now.Add(24 * time.Hour)
	tenantID := f.seedTenant("试用租户", loc("一号店", true))
	f.tenants.infos[tenantID].SubscriptionStatus = "trialing"
	f.tenants.infos[tenantID].TrialEndsAt = &endsAt
	userID := f.seedUser("o@salon.test", Membership{TenantID: tenantID, Role: RoleOwner})

	s := f.session()
	snap, err := s.Authenticate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Authenticate失败: %v", err)
	}
	if !snap.Trial.IsTrialing || snap.Trial.ShouldBlockAccess {
		t.Fatalf("试用期内不应阻断: %+v", snap.Trial)
	}

	// 时钟推进到宽限期之后，无需任何写操作，下一次读取即阻断
	f.now = endsAt.Add(4 * 24 * time.Hour)
	if got := s.Snapshot(); !got.Trial.ShouldBlockAccess {
		t.Fatalf("宽限期结束后读取应立即阻断: %+v", got.Trial)
	}
}
