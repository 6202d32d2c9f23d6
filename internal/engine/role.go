package engine

// Role 租户内角色，封闭集合，按权限从高到低排序
type Role string

const (
	RoleOwner        Role = "owner"
	RoleManager      Role = "manager"
	RoleSupervisor   Role = "supervisor"
	RoleReceptionist Role = "receptionist"
	RoleStaff        Role = "staff"
)

// AllRoles 全部角色（按权限降序）
func AllRoles() []Role {
	return []Role{RoleOwner, RoleManager, RoleSupervisor, RoleReceptionist, RoleStaff}
}

// Valid 是否为合法角色
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleSupervisor, RoleReceptionist, RoleStaff:
		return true
	default:
		return false
	}
}

// Level 权限等级，owner最高；未知角色为0
func (r Role) Level() int {
	switch r {
	case RoleOwner:
		return 5
	case RoleManager:
		return 4
	case RoleSupervisor:
		return 3
	case RoleReceptionist:
		return 2
	case RoleStaff:
		return 1
	default:
		return 0
	}
}
