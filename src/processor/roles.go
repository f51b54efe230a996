package processor

import (
	"encoding/json"
	"strings"
)

// Role 行程数据中某一列的规范语义
type Role string

const (
	RoleStartTime   Role = "start_time"   // 出发时间
	RoleEndTime     Role = "end_time"     // 到达时间
	RoleUserType    Role = "user_type"    // 用户类型
	RoleVehicleType Role = "vehicle_type" // 车辆类型
)

// Roles 按解析顺序列出全部规范角色
var Roles = []Role{RoleStartTime, RoleEndTime, RoleUserType, RoleVehicleType}

// AliasTable 角色 -> 按顺序尝试的候选列名
type AliasTable map[Role][]string

// DefaultAliases 常见共享单车导出文件的列名别名
func DefaultAliases() AliasTable {
	return AliasTable{
		RoleStartTime:   {"started_at", "start_time", "starttime", "start_datetime"},
		RoleEndTime:     {"ended_at", "end_time", "stoptime", "end_datetime"},
		RoleUserType:    {"member_casual", "usertype", "user_type", "customer_type"},
		RoleVehicleType: {"rideable_type", "bike_type", "vehicle_type"},
	}
}

// RoleMap 单个数据集的角色解析结果，加载时构建一次，之后只读
type RoleMap struct {
	cols map[Role]string
}

// ResolveColumn 返回第一个出现在 columns 中的别名(忽略大小写，其余精确匹配)
// 返回值使用数据集中列的原始写法
func ResolveColumn(columns []string, aliases []string) (string, bool) {
	lower := make(map[string]string, len(columns))
	for _, c := range columns {
		key := strings.ToLower(c)
		if _, seen := lower[key]; !seen {
			lower[key] = c
		}
	}
	for _, alias := range aliases {
		if col, ok := lower[strings.ToLower(alias)]; ok {
			return col, true
		}
	}
	return "", false
}

// ResolveRoles 根据列名构建 RoleMap
func ResolveRoles(columns []string, aliases AliasTable) RoleMap {
	m := RoleMap{cols: make(map[Role]string, len(Roles))}
	for _, role := range Roles {
		if col, ok := ResolveColumn(columns, aliases[role]); ok {
			m.cols[role] = col
		}
	}
	return m
}

func (m RoleMap) Column(role Role) (string, bool) {
	col, ok := m.cols[role]
	return col, ok
}

func (m RoleMap) Has(role Role) bool {
	_, ok := m.cols[role]
	return ok
}

// Missing 未匹配到任何别名的角色
func (m RoleMap) Missing() []Role {
	var out []Role
	for _, role := range Roles {
		if !m.Has(role) {
			out = append(out, role)
		}
	}
	return out
}

// MarshalJSON 未解析的角色输出为 null
func (m RoleMap) MarshalJSON() ([]byte, error) {
	out := make(map[Role]*string, len(Roles))
	for _, role := range Roles {
		if col, ok := m.cols[role]; ok {
			c := col
			out[role] = &c
		} else {
			out[role] = nil
		}
	}
	return json.Marshal(out)
}
