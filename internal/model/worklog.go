package model

import (
	"cmp"
	"slices"
)

// WorkLevel 是作业强度，仅取 1、2、3。
type WorkLevel int

const (
	WorkLevelLight  WorkLevel = 1
	WorkLevelNormal WorkLevel = 2
	WorkLevelHeavy  WorkLevel = 3
)

// NextWorkLevel 按 OFF→1→2→3→OFF 循环，第二个返回值为 false 表示回到 OFF。
func NextWorkLevel(current WorkLevel, logged bool) (WorkLevel, bool) {
	if !logged {
		return WorkLevelLight, true
	}
	switch current {
	case WorkLevelLight:
		return WorkLevelNormal, true
	case WorkLevelNormal:
		return WorkLevelHeavy, true
	}
	return 0, false
}

// WorkTag 是可配置的作业标签。ID 一经创建永不变更也不复用；
// 标签只会被停用，不会被删除，以便历史记录仍可归属。
type WorkTag struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Order    int    `json:"order"`
	IsActive bool   `json:"isActive"`
}

// DailyWorkLog 是 日期 -> 标签 ID -> 强度。缺少键表示未记录。
type DailyWorkLog map[string]map[string]WorkLevel

// Clone 深拷贝作业日志。
func (l DailyWorkLog) Clone() DailyWorkLog {
	if l == nil {
		return nil
	}
	out := make(DailyWorkLog, len(l))
	for date, cells := range l {
		cp := make(map[string]WorkLevel, len(cells))
		for tagID, level := range cells {
			cp[tagID] = level
		}
		out[date] = cp
	}
	return out
}

// SortTagsByOrder 返回按 Order 排序的副本。
func SortTagsByOrder(tags []WorkTag) []WorkTag {
	out := CloneWorkTags(tags)
	slices.SortStableFunc(out, func(a, b WorkTag) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return out
}

// ActiveSortedTags 过滤出启用的标签并按 Order 排序，供每日记录界面使用。
func ActiveSortedTags(tags []WorkTag) []WorkTag {
	out := make([]WorkTag, 0, len(tags))
	for _, tag := range SortTagsByOrder(tags) {
		if tag.IsActive {
			out = append(out, tag)
		}
	}
	return out
}

// CloneWorkTags 复制标签列表。
func CloneWorkTags(tags []WorkTag) []WorkTag {
	if tags == nil {
		return nil
	}
	out := make([]WorkTag, len(tags))
	copy(out, tags)
	return out
}
