// Package stats 从原始记录中推导统计数据。
// 所有函数都是纯函数，每次读取时重新计算，时间窗口以调用方传入的 now 为锚点。
package stats

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/model"
)

// lastDoneLookback 是查找最终实施日时向前扫描的最大天数。
const lastDoneLookback = 365

// MonthlyAggregate 汇总某个月的完成情况。
type MonthlyAggregate struct {
	Year           int            `json:"year"`
	Month          time.Month     `json:"month"`
	DaysInMonth    int            `json:"daysInMonth"`
	TotalPossible  int            `json:"totalPossible"`
	TotalCompleted int            `json:"totalCompleted"`
	Percentage     int            `json:"percentage"`
	PerHabit       map[string]int `json:"perHabit"`
}

// Monthly 计算指定年月的完成率与每个习惯的完成天数。
func Monthly(habits []model.Habit, records model.RecordMap, year int, month time.Month) MonthlyAggregate {
	dates := calendar.MonthDates(year, month)
	agg := MonthlyAggregate{
		Year:          year,
		Month:         month,
		DaysInMonth:   len(dates),
		TotalPossible: len(dates) * len(habits),
		PerHabit:      make(map[string]int, len(habits)),
	}
	for _, habit := range habits {
		agg.PerHabit[habit.ID] = 0
	}

	for _, date := range dates {
		completed := records[date]
		agg.TotalCompleted += len(completed)
		for _, id := range completed {
			if _, ok := agg.PerHabit[id]; ok {
				agg.PerHabit[id]++
			}
		}
	}

	agg.Percentage = percentage(agg.TotalCompleted, agg.TotalPossible)
	return agg
}

// percentage 四舍五入并限制在 [0,100]；分母为 0 时返回 0。
func percentage(completed, possible int) int {
	if possible <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(possible)))
	return min(max(p, 0), 100)
}

// DayCompletion 是某一天及其完成的习惯 ID。
type DayCompletion struct {
	Date      string   `json:"date"`
	Completed []string `json:"completed"`
}

// WeeklyHistory 返回以今天结尾的 7 天，最早的在前。
func WeeklyHistory(records model.RecordMap, now time.Time) []DayCompletion {
	days := calendar.Past7Days(now)
	history := make([]DayCompletion, 0, len(days))
	for _, day := range days {
		date := calendar.FormatDate(day)
		completed := make([]string, len(records[date]))
		copy(completed, records[date])
		history = append(history, DayCompletion{Date: date, Completed: completed})
	}
	return history
}

// LastDoneResult 描述最近一次完成的日期及距今天数（0 表示今天）。
type LastDoneResult struct {
	Date    string `json:"date"`
	DaysAgo int    `json:"daysAgo"`
}

// LastDone 从今天起向前最多扫描 365 天，找不到时第二个返回值为 false。
func LastDone(records model.RecordMap, habitID string, now time.Time) (LastDoneResult, bool) {
	for i := 0; i < lastDoneLookback; i++ {
		date := calendar.FormatDate(calendar.AddDays(now, -i))
		if records.Completed(date, habitID) {
			return LastDoneResult{Date: date, DaysAgo: i}, true
		}
	}
	return LastDoneResult{}, false
}

// Streak 计算连续完成天数：今天未完成时从昨天开始数，遇到第一个空档即停止。
func Streak(records model.RecordMap, habitID string, now time.Time) int {
	day := calendar.StartOfDay(now)
	if !records.Completed(calendar.FormatDate(day), habitID) {
		day = calendar.AddDays(day, -1)
	}

	streak := 0
	for records.Completed(calendar.FormatDate(day), habitID) {
		streak++
		day = calendar.AddDays(day, -1)
	}
	return streak
}

// HabitSummary 是统计页单个习惯的一行。
type HabitSummary struct {
	Habit    model.Habit     `json:"habit"`
	LastDone *LastDoneResult `json:"lastDone,omitempty"`
	Streak   int             `json:"streak"`
}

// HabitSummaries 为每个可见习惯计算最终实施日与连续天数。
func HabitSummaries(habits []model.Habit, records model.RecordMap, prefs model.AnalysisPrefs, now time.Time) []HabitSummary {
	visible := VisibleHabits(habits, prefs)
	out := make([]HabitSummary, 0, len(visible))
	for _, habit := range visible {
		summary := HabitSummary{Habit: habit, Streak: Streak(records, habit.ID, now)}
		if last, ok := LastDone(records, habit.ID, now); ok {
			summary.LastDone = &last
		}
		out = append(out, summary)
	}
	return out
}

// VisibleHabits 过滤掉在统计页被隐藏的习惯，保持原有顺序。
func VisibleHabits(habits []model.Habit, prefs model.AnalysisPrefs) []model.Habit {
	out := make([]model.Habit, 0, len(habits))
	for _, habit := range habits {
		if slices.Contains(prefs.HiddenHabitIDs, habit.ID) {
			continue
		}
		out = append(out, habit)
	}
	return out
}

// Band 是日历热力图的强度档位。
type Band int

const (
	BandNone Band = iota
	BandLow
	BandMedium
	BandHigh
	BandFull
)

// HeatmapIntensity 返回 min(completed/habitCount, 1)。
// 习惯列表为空但当天仍有记录时视为满格。
func HeatmapIntensity(completed, habitCount int) float64 {
	if completed <= 0 {
		return 0
	}
	if habitCount <= 0 {
		return 1
	}
	return math.Min(float64(completed)/float64(habitCount), 1)
}

// HeatmapBand 把强度分到 5 个档位，阈值均为严格小于。
func HeatmapBand(completed, habitCount int) Band {
	if completed <= 0 {
		return BandNone
	}
	intensity := HeatmapIntensity(completed, habitCount)
	switch {
	case intensity < 0.3:
		return BandLow
	case intensity < 0.6:
		return BandMedium
	case intensity < 0.9:
		return BandHigh
	default:
		return BandFull
	}
}

// HeatmapCell 是月历中的一格。
type HeatmapCell struct {
	Date      string  `json:"date"`
	Completed int     `json:"completed"`
	Intensity float64 `json:"intensity"`
	Band      Band    `json:"band"`
}

// MonthHeatmap 为指定月份的每一天生成热力图单元。
func MonthHeatmap(habits []model.Habit, records model.RecordMap, year int, month time.Month) []HeatmapCell {
	dates := calendar.MonthDates(year, month)
	cells := make([]HeatmapCell, 0, len(dates))
	for _, date := range dates {
		count := records.Count(date)
		cells = append(cells, HeatmapCell{
			Date:      date,
			Completed: count,
			Intensity: HeatmapIntensity(count, len(habits)),
			Band:      HeatmapBand(count, len(habits)),
		})
	}
	return cells
}

// TagStats 是作业标签在统计区间内的汇总。
type TagStats struct {
	TagID      string  `json:"tagId"`
	Label      string  `json:"label"`
	ActiveDays int     `json:"activeDays"`
	TotalScore int     `json:"totalScore"`
	AvgLevel   float64 `json:"avgLevel"`
}

// WorkLogPeriod 汇总最近 days 天（含今天）各标签的记录。
// 启用中或区间内有记录的标签才会出现，按 TotalScore 降序。
func WorkLogPeriod(tags []model.WorkTag, logs model.DailyWorkLog, days int, now time.Time) []TagStats {
	dates := calendar.PastNDateStrings(now, days)
	out := make([]TagStats, 0, len(tags))

	for _, tag := range tags {
		var activeDays, totalScore int
		for _, date := range dates {
			if level, ok := logs[date][tag.ID]; ok && level > 0 {
				activeDays++
				totalScore += int(level)
			}
		}

		if !tag.IsActive && activeDays == 0 {
			continue
		}

		entry := TagStats{TagID: tag.ID, Label: tag.Label, ActiveDays: activeDays, TotalScore: totalScore}
		if activeDays > 0 {
			entry.AvgLevel = float64(totalScore) / float64(activeDays)
		}
		out = append(out, entry)
	}

	slices.SortStableFunc(out, func(a, b TagStats) int {
		return cmp.Compare(b.TotalScore, a.TotalScore)
	})
	return out
}

// ReadingAggregate 记录各类别最近一次阅读的日期，空字符串表示没有记录。
type ReadingAggregate struct {
	LastNovel     string `json:"lastNovel"`
	LastPractical string `json:"lastPractical"`
	LastManga     string `json:"lastManga"`
}

// Reading 按类别取日期字符串的字典序最大值。
func Reading(logs []model.ReadingLog) ReadingAggregate {
	var agg ReadingAggregate
	for _, entry := range logs {
		switch entry.Genre {
		case model.GenreNovel:
			agg.LastNovel = max(agg.LastNovel, entry.Date)
		case model.GenrePractical:
			agg.LastPractical = max(agg.LastPractical, entry.Date)
		case model.GenreManga:
			agg.LastManga = max(agg.LastManga, entry.Date)
		}
	}
	return agg
}
