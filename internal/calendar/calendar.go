// Package calendar 提供日期格式化与日历边界计算等纯函数。
package calendar

import (
	"fmt"
	"time"
)

// DateLayout 是记录表中使用的日期键格式。
const DateLayout = "2006-01-02"

// FormatDate 以 t 自身的时区输出 YYYY-MM-DD。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate 在指定时区解析 YYYY-MM-DD，loc 为空时使用 time.Local。
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// ValidDate 判断字符串是否是合法的日期键。
func ValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

// StartOfDay 返回 t 当天零点。
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays 按日历天偏移，跨夏令时也保持在零点。
func AddDays(t time.Time, days int) time.Time {
	return StartOfDay(t).AddDate(0, 0, days)
}

// DaysInMonth 返回指定年月的天数，month 超出 1-12 时返回 0。
func DaysInMonth(year int, month time.Month) int {
	if month < time.January || month > time.December {
		return 0
	}
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthDates 返回该月每一天的日期键，按时间升序。
func MonthDates(year int, month time.Month) []string {
	days := DaysInMonth(year, month)
	dates := make([]string, 0, days)
	for day := 1; day <= days; day++ {
		dates = append(dates, fmt.Sprintf("%04d-%02d-%02d", year, int(month), day))
	}
	return dates
}

// PastDays 返回以 base 结尾的 n 天（含 base），最早的在前。
func PastDays(base time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, AddDays(base, -i))
	}
	return days
}

// Past7Days 是 PastDays(base, 7) 的简写。
func Past7Days(base time.Time) []time.Time {
	return PastDays(base, 7)
}

// PastNDateStrings 返回包含今天在内的最近 n 天日期键，最新的在前。
func PastNDateStrings(base time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	dates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, FormatDate(AddDays(base, -i)))
	}
	return dates
}
