package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/model"
)

var (
	ErrReadingLogNotFound = errors.New("reading log not found")
	ErrInvalidReadingLog  = errors.New("invalid reading log entry")
)

// PendingReading 是读书记录表单中尚未保存的一条记录。
type PendingReading struct {
	Genre  model.BookGenre  `json:"genre"`
	Status model.BookStatus `json:"status"`
	Title  string           `json:"title"`
	Count  int              `json:"count,omitempty"`
}

// normalize 校验类别与状态，未填写时按小说/在读处理。只有漫画保留册数，且至少为 1。
func (p PendingReading) normalize() (PendingReading, error) {
	if strings.TrimSpace(string(p.Genre)) == "" {
		p.Genre = model.GenreNovel
	}
	if strings.TrimSpace(string(p.Status)) == "" {
		p.Status = model.StatusReading
	}
	genre, ok := model.ParseGenre(string(p.Genre))
	if !ok {
		return PendingReading{}, ErrInvalidReadingLog
	}
	status, ok := model.ParseStatus(string(p.Status))
	if !ok {
		return PendingReading{}, ErrInvalidReadingLog
	}

	out := PendingReading{Genre: genre, Status: status, Title: strings.TrimSpace(p.Title)}
	if genre == model.GenreManga {
		out.Count = p.Count
		if out.Count < 1 {
			out.Count = 1
		}
	}
	return out, nil
}

// ReadingDraft 是一次读书记录表单的暂存区，可以追加多条后一次性保存。
type ReadingDraft struct {
	entries []PendingReading
}

// Add 暂存一条记录。
func (d *ReadingDraft) Add(entry PendingReading) error {
	normalized, err := entry.normalize()
	if err != nil {
		return err
	}
	d.entries = append(d.entries, normalized)
	return nil
}

// Remove 删除第 i 条暂存记录，越界时忽略。
func (d *ReadingDraft) Remove(i int) {
	if i < 0 || i >= len(d.entries) {
		return
	}
	d.entries = append(d.entries[:i:i], d.entries[i+1:]...)
}

// Entries 返回暂存记录的副本。
func (d *ReadingDraft) Entries() []PendingReading {
	return append([]PendingReading(nil), d.entries...)
}

// Finish 结束表单并清空暂存区。
// 当前表单在标题非空或没有任何暂存记录时也会被计入，因此什么都不填也会得到一条默认记录。
func (d *ReadingDraft) Finish(current PendingReading) ([]PendingReading, error) {
	all := d.Entries()
	if strings.TrimSpace(current.Title) != "" || len(all) == 0 {
		normalized, err := current.normalize()
		if err != nil {
			return nil, err
		}
		all = append(all, normalized)
	}
	d.entries = nil
	return all, nil
}

// SaveReadingLogs 把表单结果追加到读书记录，记录保存后不可编辑，只能删除。
func (c *SyncController) SaveReadingLogs(date string, entries []PendingReading) ([]model.ReadingLog, error) {
	if !calendar.ValidDate(date) {
		return nil, ErrInvalidDate
	}

	normalized := make([]PendingReading, 0, len(entries))
	for _, entry := range entries {
		n, err := entry.normalize()
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return []model.ReadingLog{}, nil
	}

	created := make([]model.ReadingLog, 0, len(normalized))
	for _, entry := range normalized {
		rec := model.ReadingLog{
			ID:      uuid.NewString(),
			HabitID: c.defaults.ReadingHabitID,
			Date:    date,
			Genre:   entry.Genre,
			Status:  entry.Status,
			Title:   entry.Title,
		}
		if entry.Genre == model.GenreManga {
			count := entry.Count
			rec.Count = &count
		}
		created = append(created, rec)
	}

	logs := model.CloneReadingLogs(c.state.ReadingLogs)
	c.state.ReadingLogs = append(logs, created...)
	c.persistLocked(model.FieldReadingLogs)
	return model.CloneReadingLogs(created), nil
}

// DeleteReadingLog 删除一条读书记录。
func (c *SyncController) DeleteReadingLog(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}

	idx := -1
	for i, entry := range c.state.ReadingLogs {
		if entry.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrReadingLogNotFound
	}

	next := make([]model.ReadingLog, 0, len(c.state.ReadingLogs)-1)
	next = append(next, c.state.ReadingLogs[:idx]...)
	next = append(next, c.state.ReadingLogs[idx+1:]...)
	c.state.ReadingLogs = next
	c.persistLocked(model.FieldReadingLogs)
	return nil
}

// ReadingTitles 返回去重后的历史书名，最近记录的排在前面，供表单自动补全。
func (c *SyncController) ReadingTitles() []string {
	c.mu.Lock()
	logs := model.CloneReadingLogs(c.state.ReadingLogs)
	c.mu.Unlock()

	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Date > logs[j].Date })

	titles := make([]string, 0, len(logs))
	seen := make(map[string]struct{}, len(logs))
	for _, entry := range logs {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}
