package dto

// PermissionCheckReq 组合权限检查，mode 缺省为 any，空列表的结果为 false
type PermissionCheckReq struct {
	Permissions []string `json:"permissions" validate:"dive,required"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=any all"`
}

// AccessQuery 资源/动作检查
type AccessQuery struct {
	Resource string `form:"resource" validate:"required"`
	Action   string `form:"action" validate:"required"`
}

// RoleCheckReq 角色检查
type RoleCheckReq struct {
	Roles []string `json:"roles" validate:"dive,required"`
}

// DecisionDTO 检查结果，拒绝不是错误
type DecisionDTO struct {
	Allowed bool `json:"allowed"`
}
