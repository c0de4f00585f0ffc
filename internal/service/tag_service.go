package service

import (
	"errors"
	"strings"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/model"
)

var (
	ErrWorkTagNotFound = errors.New("work tag not found")
	ErrWorkTagInactive = errors.New("work tag is inactive")
)

// ToggleWorkLevel 按 OFF→1→2→3→OFF 循环切换某日某标签的强度。
// 第二个返回值为 false 表示该格回到未记录状态。
func (c *SyncController) ToggleWorkLevel(date, tagID string) (model.WorkLevel, bool, error) {
	if !calendar.ValidDate(date) {
		return 0, false, ErrInvalidDate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return 0, false, err
	}
	idx := findWorkTag(c.state.WorkTags, tagID)
	if idx < 0 {
		return 0, false, ErrWorkTagNotFound
	}
	if !c.state.WorkTags[idx].IsActive {
		return 0, false, ErrWorkTagInactive
	}

	logs := c.state.WorkLogs.Clone()
	if logs == nil {
		logs = model.DailyWorkLog{}
	}
	day := logs[date]
	current, logged := day[tagID]
	next, on := model.NextWorkLevel(current, logged)

	if on {
		if day == nil {
			day = make(map[string]model.WorkLevel)
			logs[date] = day
		}
		day[tagID] = next
	} else {
		delete(day, tagID)
		if len(day) == 0 {
			delete(logs, date)
		}
	}

	c.state.WorkLogs = logs
	c.persistLocked(model.FieldWorkLogs)
	return next, on, nil
}

// SaveWorkTags 按给定顺序保存标签并把 order 重新编号为 1..n。
// 只接受已有的标签 ID；未出现在输入中的标签追加在末尾，标签永远不会被删除。
// 空白名称保留原名称。
func (c *SyncController) SaveWorkTags(tags []model.WorkTag) ([]model.WorkTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	existing := make(map[string]model.WorkTag, len(c.state.WorkTags))
	for _, tag := range c.state.WorkTags {
		existing[tag.ID] = tag
	}

	next := make([]model.WorkTag, 0, len(c.state.WorkTags))
	used := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		current, ok := existing[tag.ID]
		if !ok {
			continue
		}
		if _, dup := used[tag.ID]; dup {
			continue
		}
		used[tag.ID] = struct{}{}

		if label := strings.TrimSpace(tag.Label); label != "" {
			current.Label = label
		}
		current.IsActive = tag.IsActive
		next = append(next, current)
	}
	for _, tag := range model.SortTagsByOrder(c.state.WorkTags) {
		if _, ok := used[tag.ID]; !ok {
			next = append(next, tag)
		}
	}

	renumberTags(next)
	c.state.WorkTags = next
	c.persistLocked(model.FieldWorkTags)
	return model.CloneWorkTags(next), nil
}

// MoveWorkTag 在按 order 排序后的列表中与相邻标签交换位置，边界处不做修改。
func (c *SyncController) MoveWorkTag(index, direction int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return false, err
	}
	if direction != MoveUp && direction != MoveDown {
		return false, nil
	}

	tags := model.SortTagsByOrder(c.state.WorkTags)
	target := index + direction
	if index < 0 || index >= len(tags) || target < 0 || target >= len(tags) {
		return false, nil
	}

	tags[index], tags[target] = tags[target], tags[index]
	renumberTags(tags)
	c.state.WorkTags = tags
	c.persistLocked(model.FieldWorkTags)
	return true, nil
}

// RenameWorkTag 修改标签名称，空白名称被忽略。
func (c *SyncController) RenameWorkTag(tagID, label string) error {
	label = strings.TrimSpace(label)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}
	idx := findWorkTag(c.state.WorkTags, tagID)
	if idx < 0 {
		return ErrWorkTagNotFound
	}
	if label == "" {
		return nil
	}

	tags := model.CloneWorkTags(c.state.WorkTags)
	tags[idx].Label = label
	c.state.WorkTags = tags
	c.persistLocked(model.FieldWorkTags)
	return nil
}

// SetWorkTagActive 启用或停用标签，停用的标签保留全部历史记录。
func (c *SyncController) SetWorkTagActive(tagID string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}
	idx := findWorkTag(c.state.WorkTags, tagID)
	if idx < 0 {
		return ErrWorkTagNotFound
	}

	tags := model.CloneWorkTags(c.state.WorkTags)
	tags[idx].IsActive = active
	c.state.WorkTags = tags
	c.persistLocked(model.FieldWorkTags)
	return nil
}

func findWorkTag(tags []model.WorkTag, id string) int {
	for i, tag := range tags {
		if tag.ID == id {
			return i
		}
	}
	return -1
}

func renumberTags(tags []model.WorkTag) {
	for i := range tags {
		tags[i].Order = i + 1
	}
}
