package engine

import "testing"

func TestOwnerBypassesAllRules(t *testing.T) {
	// owner不受任何规则限制，即使规则集全部显式拒绝
	denyAll := make(map[Module]bool)
	for _, m := range Catalog() {
		denyAll[m] = false
	}
	ev := NewEvaluator(RoleOwner, denyAll, denyAll)

	for _, m := range Catalog() {
		if !ev.HasPermission(m) {
			t.Fatalf("owner对模块%s应放行", m)
		}
	}
}

func TestOverrideBeatsRoleRule(t *testing.T) {
	tests := []struct {
		name     string
		roleRule bool
		override bool
		want     bool
	}{
		{"规则拒绝例外放行", false, true, true},
		{"规则放行例外拒绝", true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvaluator(RoleManager,
				map[Module]bool{ModuleReports: tt.roleRule},
				map[Module]bool{ModuleReports: tt.override})
			if got := ev.HasPermission(ModuleReports); got != tt.want {
				t.Fatalf("HasPermission(reports) = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestRoleRuleBeatsDefaultMatrix(t *testing.T) {
	// 默认矩阵中staff不可访问customers，租户规则显式放行后应生效
	ev := NewEvaluator(RoleStaff, map[Module]bool{ModuleCustomers: true}, nil)
	if !ev.HasPermission(ModuleCustomers) {
		t.Fatal("租户角色规则放行应覆盖默认矩阵的拒绝")
	}
}

func TestDefaultMatrixFallback(t *testing.T) {
	tests := []struct {
		role   Role
		module Module
		want   bool
	}{
		{RoleReceptionist, ModulePOS, true},
		{RoleReceptionist, ModuleReports, false},
		{RoleStaff, ModuleCalendar, true},
		{RoleStaff, ModuleCustomersDelete, false},
		{RoleSupervisor, ModuleStaffManage, false},
		{RoleManager, ModuleBilling, false},
		{RoleManager, ModuleMarketing, true},
	}
	for _, tt := range tests {
		ev := NewEvaluator(tt.role, nil, nil)
		if got := ev.HasPermission(tt.module); got != tt.want {
			t.Fatalf("%s/%s = %v, 期望 %v", tt.role, tt.module, got, tt.want)
		}
	}
}

func TestStaffDeleteCustomerOverride(t *testing.T) {
	// staff默认无customers:delete，用户级例外放行后生效
	base := NewEvaluator(RoleStaff, nil, nil)
	if base.HasPermission(ModuleCustomersDelete) {
		t.Fatal("staff默认应被拒绝customers:delete")
	}

	ev := NewEvaluator(RoleStaff, nil, map[Module]bool{ModuleCustomersDelete: true})
	if !ev.HasPermission(ModuleCustomersDelete) {
		t.Fatal("用户级例外应放行customers:delete")
	}
}

func TestUnknownModuleDenied(t *testing.T) {
	ev := NewEvaluator(RoleManager, nil, nil)
	if ev.HasPermission(Module("time-travel")) {
		t.Fatal("目录外的模块键必须拒绝")
	}
}

func TestFailClosedEvaluator(t *testing.T) {
	ev := NewFailClosedEvaluator(RoleManager)
	for _, m := range Catalog() {
		if ev.HasPermission(m) {
			t.Fatalf("降级判定器对%s应拒绝", m)
		}
	}

	// owner即使在降级状态也放行
	owner := NewFailClosedEvaluator(RoleOwner)
	if !owner.HasPermission(ModuleBilling) {
		t.Fatal("降级判定器不应影响owner")
	}
}

func TestDenyAll(t *testing.T) {
	ev := DenyAll()
	if ev.HasPermission(ModuleDashboard) {
		t.Fatal("未就绪判定器必须拒绝一切")
	}
}

func TestSnapshotCoversCatalog(t *testing.T) {
	snap := NewEvaluator(RoleReceptionist, nil, nil).Snapshot()
	if len(snap) != len(Catalog()) {
		t.Fatalf("快照应覆盖全部%d个模块，实际%d个", len(Catalog()), len(snap))
	}
	if !snap[ModuleCalendar] {
		t.Fatal("receptionist对calendar应放行")
	}
	if snap[ModuleSettings] {
		t.Fatal("receptionist对settings应拒绝")
	}
}
