// Package entity 定义领域实体
package entity

// AgentRole Agent 团队角色枚举
type AgentRole string

const (
	RoleCoordinator AgentRole = "coordinator"
	RoleWriter      AgentRole = "writer"
	RoleEditor      AgentRole = "editor"
	RoleResearcher  AgentRole = "researcher"
	RoleMonitor     AgentRole = "monitor"
)

// AllAgentRoles 返回全部角色
func AllAgentRoles() []AgentRole {
	return []AgentRole{
		RoleCoordinator,
		RoleWriter,
		RoleEditor,
		RoleResearcher,
		RoleMonitor,
	}
}

// Valid 检查角色取值是否合法
func (r AgentRole) Valid() bool {
	switch r {
	case RoleCoordinator, RoleWriter, RoleEditor, RoleResearcher, RoleMonitor:
		return true
	}
	return false
}
