package model

// RecordMap 是 日期 -> 当日完成的习惯 ID 列表。
// 缺少某个日期等价于当天没有完成任何习惯。
type RecordMap map[string][]string

// Completed 判断某习惯在该日期是否已完成。
func (r RecordMap) Completed(date, habitID string) bool {
	for _, id := range r[date] {
		if id == habitID {
			return true
		}
	}
	return false
}

// Count 返回该日期的完成数。
func (r RecordMap) Count(date string) int {
	return len(r[date])
}

// Toggle 切换某日期下习惯的完成状态，返回切换后的状态。
// 同一 ID 在同一天最多出现一次。
func (r RecordMap) Toggle(date, habitID string) bool {
	current := r[date]
	for i, id := range current {
		if id == habitID {
			next := make([]string, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			r[date] = next
			return false
		}
	}
	next := make([]string, len(current), len(current)+1)
	copy(next, current)
	r[date] = append(next, habitID)
	return true
}

// Clone 深拷贝记录表。
func (r RecordMap) Clone() RecordMap {
	if r == nil {
		return nil
	}
	out := make(RecordMap, len(r))
	for date, ids := range r {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[date] = cp
	}
	return out
}
