package capability

import (
	"sort"
	"strings"
)

const (
	// Wildcard 超级权限，满足任意检查
	Wildcard = "*"
	// ManageAction resource:manage 蕴含该资源下的所有动作
	ManageAction = "manage"
	separator    = ":"
)

// Mode 组合检查模式
type Mode int8

const (
	ModeAny Mode = iota + 1
	ModeAll
)

// Set 当前会话的权限快照
// 登录、登出、刷新时整体替换，创建后不可修改
type Set struct {
	permissions map[string]struct{}
	role        string
	hasRole     bool
}

// NewSet 根据会话下发的权限数组与角色构造快照，role 为 nil 表示无角色
func NewSet(permissions []string, role *string) *Set {
	s := &Set{permissions: make(map[string]struct{}, len(permissions))}
	for _, p := range permissions {
		s.permissions[p] = struct{}{}
	}
	if role != nil {
		s.role = *role
		s.hasRole = true
	}
	return s
}

// Empty 未登录时的空快照
func Empty() *Set {
	return NewSet(nil, nil)
}

// Role 返回角色，未设置时 ok 为 false
func (s *Set) Role() (string, bool) {
	if s == nil {
		return "", false
	}
	return s.role, s.hasRole
}

// Permissions 返回排序后的权限副本
func (s *Set) Permissions() []string {
	if s == nil {
		return nil
	}
	res := make([]string, 0, len(s.permissions))
	for p := range s.permissions {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

// Contains 逐字匹配，不做任何蕴含推导
func (s *Set) Contains(perm string) bool {
	if s == nil {
		return false
	}
	_, ok := s.permissions[perm]
	return ok
}

// HasPermission 单权限检查：通配符、逐字匹配或同资源的 manage 授权
func (s *Set) HasPermission(perm string) bool {
	if s == nil {
		return false
	}
	if s.Contains(Wildcard) || s.Contains(perm) {
		return true
	}
	resource, ok := resourceOf(perm)
	if !ok {
		return false
	}
	return s.Contains(resource + separator + ManageAction)
}

// HasAnyPermission 任意一个满足即可，空输入为 false
func (s *Set) HasAnyPermission(perms []string) bool {
	for _, p := range perms {
		if s.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions 全部满足，空输入为 false
func (s *Set) HasAllPermissions(perms []string) bool {
	if len(perms) == 0 {
		return false
	}
	for _, p := range perms {
		if !s.HasPermission(p) {
			return false
		}
	}
	return true
}

// CanAccess 等价于 HasPermission("resource:action")
func (s *Set) CanAccess(resource, action string) bool {
	return s.HasPermission(resource + separator + action)
}

// RoleAllowed 当前角色是否在允许列表中
func (s *Set) RoleAllowed(allowedRoles []string) bool {
	role, ok := s.Role()
	if !ok {
		return false
	}
	for _, r := range allowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Check 按模式组合检查，未知模式一律拒绝
func (s *Set) Check(mode Mode, perms []string) bool {
	switch mode {
	case ModeAny:
		return s.HasAnyPermission(perms)
	case ModeAll:
		return s.HasAllPermissions(perms)
	default:
		return false
	}
}

// resourceOf 取第一个冒号前的资源名；没有冒号时整个字符串即资源，且不可能有 manage 蕴含
func resourceOf(perm string) (string, bool) {
	idx := strings.Index(perm, separator)
	if idx < 0 {
		return perm, false
	}
	return perm[:idx], true
}
