package service

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/model"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrDeleteNotPending 在确认删除的习惯与待删除的不一致时返回
	ErrDeleteNotPending = errors.New("habit delete not requested")
	// ErrInvalidDate 日期不是 YYYY-MM-DD 格式时返回
	ErrInvalidDate = errors.New("invalid date")
)

// 习惯排序的移动方向
const (
	MoveUp   = -1
	MoveDown = 1
)

// ToggleResult 描述一次打卡切换的结果。
type ToggleResult struct {
	Completed bool `json:"completed"`
	// PromptReadingLog 仅在读书习惯从未完成变为完成时为 true，前端据此打开读书记录表单。
	PromptReadingLog bool `json:"promptReadingLog"`
}

// ToggleHabit 切换某日期下习惯的完成状态。
func (c *SyncController) ToggleHabit(date, habitID string) (ToggleResult, error) {
	if !calendar.ValidDate(date) {
		return ToggleResult{}, ErrInvalidDate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return ToggleResult{}, err
	}
	if model.FindHabit(c.state.Habits, habitID) < 0 {
		return ToggleResult{}, ErrHabitNotFound
	}

	if c.state.Records == nil {
		c.state.Records = model.RecordMap{}
	}
	completed := c.state.Records.Toggle(date, habitID)
	c.persistLocked(model.FieldRecords)

	return ToggleResult{
		Completed:        completed,
		PromptReadingLog: completed && habitID == c.defaults.ReadingHabitID,
	}, nil
}

// AddHabit 追加一个新习惯。名称去除空白后为空时不做任何修改，第二个返回值为 false。
func (c *SyncController) AddHabit(name string) (model.Habit, bool, error) {
	name = strings.TrimSpace(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return model.Habit{}, false, err
	}
	if name == "" {
		return model.Habit{}, false, nil
	}

	habit := model.Habit{
		ID:    c.nextHabitIDLocked(),
		Name:  name,
		Icon:  string(model.DefaultIcon),
		Color: model.ColorPalette[c.pick(len(model.ColorPalette))],
	}
	c.state.Habits = append(c.state.Habits, habit)
	c.persistLocked(model.FieldHabits)
	return habit, true, nil
}

// nextHabitIDLocked 以毫秒时间戳生成 ID，同一毫秒内冲突时递增。
func (c *SyncController) nextHabitIDLocked() string {
	stamp := c.now().UnixMilli()
	for {
		id := "h" + strconv.FormatInt(stamp, 10)
		if model.FindHabit(c.state.Habits, id) < 0 {
			return id
		}
		stamp++
	}
}

// RequestDelete 进入待删除状态。对另一个习惯再次请求会替换待删除目标。
func (c *SyncController) RequestDelete(habitID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}
	if model.FindHabit(c.state.Habits, habitID) < 0 {
		return ErrHabitNotFound
	}
	c.pendingDelete = habitID
	return nil
}

// CancelDelete 回到空闲状态。
func (c *SyncController) CancelDelete() {
	c.mu.Lock()
	c.pendingDelete = ""
	c.mu.Unlock()
}

// PendingDelete 返回待删除的习惯 ID。
func (c *SyncController) PendingDelete() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingDelete
}

// ConfirmDelete 删除先前请求过的习惯。ID 不一致时回到空闲状态并返回 ErrDeleteNotPending。
// 打卡记录中的历史 ID 保持不变。
func (c *SyncController) ConfirmDelete(habitID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}

	pending := c.pendingDelete
	c.pendingDelete = ""
	if pending == "" || pending != habitID {
		return ErrDeleteNotPending
	}

	idx := model.FindHabit(c.state.Habits, habitID)
	if idx < 0 {
		return ErrHabitNotFound
	}
	next := make([]model.Habit, 0, len(c.state.Habits)-1)
	next = append(next, c.state.Habits[:idx]...)
	next = append(next, c.state.Habits[idx+1:]...)
	c.state.Habits = next
	c.persistLocked(model.FieldHabits)
	return nil
}

// MoveHabit 与相邻习惯交换位置。越界或处于边界时不做修改，返回 false。
func (c *SyncController) MoveHabit(index, direction int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return false, err
	}
	if direction != MoveUp && direction != MoveDown {
		return false, nil
	}

	target := index + direction
	if index < 0 || index >= len(c.state.Habits) || target < 0 || target >= len(c.state.Habits) {
		return false, nil
	}

	habits := model.CloneHabits(c.state.Habits)
	habits[index], habits[target] = habits[target], habits[index]
	c.state.Habits = habits
	c.persistLocked(model.FieldHabits)
	return true, nil
}

// RenameHabit 修改习惯名称，空白名称被忽略。
func (c *SyncController) RenameHabit(habitID, name string) error {
	name = strings.TrimSpace(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}
	idx := model.FindHabit(c.state.Habits, habitID)
	if idx < 0 {
		return ErrHabitNotFound
	}
	if name == "" || c.state.Habits[idx].Name == name {
		return nil
	}

	habits := model.CloneHabits(c.state.Habits)
	habits[idx].Name = name
	c.state.Habits = habits
	c.persistLocked(model.FieldHabits)
	return nil
}

func randomIndex(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}
