package engine

// Module 功能模块键，封闭目录
type Module string

const (
	ModuleOverview           Module = "overview" // owner hub 聚合视图
	ModuleDashboard          Module = "dashboard"
	ModuleCalendar           Module = "calendar"
	ModuleAppointments       Module = "appointments"
	ModuleAppointmentsCancel Module = "appointments:cancel"
	ModuleCustomers          Module = "customers"
	ModuleCustomersFlag      Module = "customers:flag"
	ModuleCustomersDelete    Module = "customers:delete"
	ModuleCatalog            Module = "catalog"
	ModuleCatalogDelete      Module = "catalog:delete"
	ModuleStaff              Module = "staff"
	ModuleStaffManage        Module = "staff:manage"
	ModuleLocations          Module = "locations"
	ModuleInventory          Module = "inventory"
	ModulePOS                Module = "pos"
	ModuleReports            Module = "reports"
	ModuleMarketing          Module = "marketing"
	ModuleEmails             Module = "emails"
	ModuleReviews            Module = "reviews"
	ModuleSettings           Module = "settings"
	ModuleBilling            Module = "billing"
)

// Catalog 模块目录（固定顺序，同时作为落地路由的兜底排序）
func Catalog() []Module {
	return []Module{
		ModuleOverview,
		ModuleDashboard,
		ModuleCalendar,
		ModuleAppointments,
		ModuleAppointmentsCancel,
		ModuleCustomers,
		ModuleCustomersFlag,
		ModuleCustomersDelete,
		ModuleCatalog,
		ModuleCatalogDelete,
		ModuleStaff,
		ModuleStaffManage,
		ModuleLocations,
		ModuleInventory,
		ModulePOS,
		ModuleReports,
		ModuleMarketing,
		ModuleEmails,
		ModuleReviews,
		ModuleSettings,
		ModuleBilling,
	}
}

// defaultMatrix 内置角色权限矩阵
// 新租户开通时以此为种子写入role_permissions；未定制的租户直接按此判定
var defaultMatrix = map[Module]map[Role]bool{
	ModuleOverview:           {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: false, RoleStaff: false},
	ModuleDashboard:          {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: true},
	ModuleCalendar:           {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: true},
	ModuleAppointments:       {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: true},
	ModuleAppointmentsCancel: {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: false},
	ModuleCustomers:          {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: false},
	ModuleCustomersFlag:      {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: false},
	ModuleCustomersDelete:    {RoleOwner: true, RoleManager: true, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleCatalog:            {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: false, RoleStaff: false},
	ModuleCatalogDelete:      {RoleOwner: true, RoleManager: true, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleStaff:              {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: false, RoleStaff: false},
	ModuleStaffManage:        {RoleOwner: true, RoleManager: true, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleLocations:          {RoleOwner: true, RoleManager: false, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleInventory:          {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: false, RoleStaff: false},
	ModulePOS:                {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: false},
	ModuleReports:            {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: false, RoleStaff: false},
	ModuleMarketing:          {RoleOwner: true, RoleManager: true, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleEmails:             {RoleOwner: true, RoleManager: true, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleReviews:            {RoleOwner: true, RoleManager: true, RoleSupervisor: true, RoleReceptionist: true, RoleStaff: false},
	ModuleSettings:           {RoleOwner: true, RoleManager: true, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
	ModuleBilling:            {RoleOwner: true, RoleManager: false, RoleSupervisor: false, RoleReceptionist: false, RoleStaff: false},
}

// DefaultAllowed 内置默认值；known为false表示模块不在目录中（按拒绝处理）
func DefaultAllowed(role Role, module Module) (allowed bool, known bool) {
	roles, ok := defaultMatrix[module]
	if !ok {
		return false, false
	}
	return roles[role], true
}

// ========== 落地路由 ==========

// 固定路由常量
const (
	RouteAssignmentPending = "/assignment-pending"
	RouteOverview          = "/overview"
	RouteDashboard         = "/dashboard"
)

// moduleRoutes 可作为落地页的模块路由
var moduleRoutes = map[Module]string{
	ModuleOverview:     RouteOverview,
	ModuleDashboard:    RouteDashboard,
	ModuleCalendar:     "/calendar",
	ModuleAppointments: "/appointments",
	ModuleCustomers:    "/customers",
	ModuleCatalog:      "/catalog",
	ModuleStaff:        "/staff",
	ModuleInventory:    "/inventory",
	ModulePOS:          "/pos",
	ModuleReports:      "/reports",
	ModuleMarketing:    "/marketing",
	ModuleEmails:       "/emails",
	ModuleReviews:      "/reviews",
	ModuleSettings:     "/settings",
	ModuleBilling:      "/billing",
}

// ModuleRoute 模块对应的落地路由；没有独立页面的模块返回空串
func ModuleRoute(m Module) string {
	return moduleRoutes[m]
}

// ModuleByRoute 路由反查模块
func ModuleByRoute(route string) (Module, bool) {
	for m, r := range moduleRoutes {
		if r == route {
			return m, true
		}
	}
	return "", false
}
