package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestResolveOwnerDefaultsToHub(t *testing.T) {
	f := newFixture()
	tenantID := f.seedTenant("总店", loc("一号店", true), loc("二号店", false), loc("三号店", false))
	userID := uuid.New()

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleOwner)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.Type != ContextOwnerHub {
		t.Fatalf("owner无偏好时应落到聚合视图，实际%s", rc.Type)
	}
	if !rc.CanUseOwnerHub {
		t.Fatal("owner应有聚合视图资格")
	}
	if len(rc.AssignedLocationIDs) != 3 {
		t.Fatalf("owner可操作门店应为全部3家，实际%d", len(rc.AssignedLocationIDs))
	}
	// 聚合视图在前 + 3家门店
	if len(rc.AvailableContexts) != 4 {
		t.Fatalf("可选上下文应为4项，实际%d", len(rc.AvailableContexts))
	}
	if rc.AvailableContexts[0].Type != ContextOwnerHub {
		t.Fatal("聚合视图应排在可选列表首位")
	}
}

func TestResolveIdempotent(t *testing.T) {
	f := newFixture()
	l1, l2 := loc("一号店", true), loc("二号店", false)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := uuid.New()
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID, l2.ID}

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	first, err := r.Resolve(context.Background(), userID, tenantID, RoleManager)
	if err != nil {
		t.Fatalf("第一次Resolve失败: %v", err)
	}
	second, err := r.Resolve(context.Background(), userID, tenantID, RoleManager)
	if err != nil {
		t.Fatalf("第二次Resolve失败: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("输入不变时两次解析结果应一致:\n第一次 %+v\n第二次 %+v", first, second)
	}
}

func TestOwnerHubEligibility(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		assigned int
		want     bool
	}{
		{"经理单店", RoleManager, 1, false},
		{"经理两店", RoleManager, 2, true},
		{"主管三店", RoleSupervisor, 3, true},
		{"主管单店", RoleSupervisor, 1, false},
		{"前台三店", RoleReceptionist, 3, false},
		{"员工两店", RoleStaff, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			locs := make([]LocationInfo, 0, tt.assigned)
			for i := 0; i < tt.assigned; i++ {
				locs = append(locs, loc("门店", i == 0))
			}
			tenantID := f.seedTenant("连锁", locs...)
			userID := uuid.New()
			ids := make([]uuid.UUID, 0, tt.assigned)
			for _, l := range locs {
				ids = append(ids, l.ID)
			}
			f.assignments.assigned[ctxKey{userID, tenantID}] = ids

			r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
			rc, err := r.Resolve(context.Background(), userID, tenantID, tt.role)
			if err != nil {
				t.Fatalf("Resolve失败: %v", err)
			}
			if rc.CanUseOwnerHub != tt.want {
				t.Fatalf("CanUseOwnerHub = %v, 期望 %v", rc.CanUseOwnerHub, tt.want)
			}
		})
	}
}

func TestStaleStoredLocationCorrected(t *testing.T) {
	// 已存门店偏好指向已被取消排班的门店X，解析必须纠正而不是报错
	f := newFixture()
	l1 := loc("一号店", false)
	staleX := loc("旧门店", false)
	tenantID := f.seedTenant("连锁", l1, staleX)
	userID := uuid.New()
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID}
	f.contexts.contexts[ctxKey{userID, tenantID}] = ActiveContext{Type: ContextLocation, LocationID: staleX.ID}

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleManager)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.LocationID == staleX.ID {
		t.Fatal("过期的门店偏好不得生效")
	}
	if rc.Type != ContextLocation || rc.LocationID != l1.ID {
		t.Fatalf("应回退到唯一排班门店，实际 %s/%s", rc.Type, rc.LocationID)
	}

	// 纠正结果回写本地存储
	saved := f.contexts.contexts[ctxKey{userID, tenantID}]
	if saved.LocationID != l1.ID {
		t.Fatalf("纠正后的偏好应回写，实际 %+v", saved)
	}
}

func TestStoredHubRevokedForSingleLocationManager(t *testing.T) {
	// 经理从两店缩减到单店后，已存的聚合视图偏好失效
	f := newFixture()
	l1 := loc("一号店", true)
	tenantID := f.seedTenant("连锁", l1)
	userID := uuid.New()
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID}
	f.contexts.contexts[ctxKey{userID, tenantID}] = ActiveContext{Type: ContextOwnerHub}

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleManager)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.Type != ContextLocation || rc.LocationID != l1.ID {
		t.Fatalf("应纠正为单店上下文，实际 %s/%s", rc.Type, rc.LocationID)
	}
}

func TestValidStoredPreferenceWins(t *testing.T) {
	f := newFixture()
	l1, l2 := loc("一号店", true), loc("二号店", false)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := uuid.New()
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID, l2.ID}
	// 有聚合资格但存的是二号店，偏好优先
	f.contexts.contexts[ctxKey{userID, tenantID}] = ActiveContext{Type: ContextLocation, LocationID: l2.ID}

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleManager)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.Type != ContextLocation || rc.LocationID != l2.ID {
		t.Fatalf("有效的已存偏好应直接生效，实际 %s/%s", rc.Type, rc.LocationID)
	}
}

func TestServerDefaultUsedWhenNoLocalPreference(t *testing.T) {
	f := newFixture()
	l1, l2 := loc("一号店", true), loc("二号店", false)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := uuid.New()
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID, l2.ID}
	f.mirror.def = &ActiveContext{Type: ContextLocation, LocationID: l2.ID}

	r := NewContextResolver(f.assignments, f.contexts, f.mirror, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleManager)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.Type != ContextLocation || rc.LocationID != l2.ID {
		t.Fatalf("本地无偏好时应采用服务端默认值，实际 %s/%s", rc.Type, rc.LocationID)
	}
}

func TestDefaultLocationPreferredInFallback(t *testing.T) {
	// 员工无偏好时兜底到租户默认门店而非排班列表首项
	f := newFixture()
	l1, l2 := loc("一号店", false), loc("二号店", true)
	tenantID := f.seedTenant("连锁", l1, l2)
	userID := uuid.New()
	f.assignments.assigned[ctxKey{userID, tenantID}] = []uuid.UUID{l1.ID, l2.ID}

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleStaff)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.Type != ContextLocation || rc.LocationID != l2.ID {
		t.Fatalf("应兜底到默认门店，实际 %s/%s", rc.Type, rc.LocationID)
	}
}

func TestZeroAssignmentsResolvesToNone(t *testing.T) {
	f := newFixture()
	tenantID := f.seedTenant("连锁", loc("一号店", true))
	userID := uuid.New()

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	rc, err := r.Resolve(context.Background(), userID, tenantID, RoleReceptionist)
	if err != nil {
		t.Fatalf("Resolve失败: %v", err)
	}

	if rc.Type != ContextNone {
		t.Fatalf("无排班时上下文应为空，实际%s", rc.Type)
	}
	if len(rc.AssignedLocationIDs) != 0 {
		t.Fatal("无排班时可操作门店集合应为空")
	}
	if len(rc.AvailableContexts) != 0 {
		t.Fatal("无排班时可选上下文应为空")
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	f := newFixture()
	tenantID := f.seedTenant("连锁", loc("一号店", true))

	r := NewContextResolver(f.assignments, f.contexts, nil, testLogger())
	if _, err := r.Resolve(context.Background(), uuid.New(), tenantID, Role("ghost")); err == nil {
		t.Fatal("未知角色应返回错误")
	}
}
