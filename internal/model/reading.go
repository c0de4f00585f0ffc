package model

import "strings"

// BookGenre 是读书记录的类别。
type BookGenre string

// BookStatus 是读书进度。
type BookStatus string

const (
	GenreNovel     BookGenre = "novel"
	GenrePractical BookGenre = "practical"
	GenreManga     BookGenre = "manga"

	StatusReading  BookStatus = "reading"
	StatusFinished BookStatus = "finished"
)

// ParseGenre 解析类别，未知值返回 false。
func ParseGenre(value string) (BookGenre, bool) {
	switch BookGenre(strings.ToLower(strings.TrimSpace(value))) {
	case GenreNovel:
		return GenreNovel, true
	case GenrePractical:
		return GenrePractical, true
	case GenreManga:
		return GenreManga, true
	}
	return "", false
}

// ParseStatus 解析阅读状态，未知值返回 false。
func ParseStatus(value string) (BookStatus, bool) {
	switch BookStatus(strings.ToLower(strings.TrimSpace(value))) {
	case StatusReading:
		return StatusReading, true
	case StatusFinished:
		return StatusFinished, true
	}
	return "", false
}

// ReadingLog 是一条只追加的读书记录，Count 仅对漫画有意义。
type ReadingLog struct {
	ID      string     `json:"id"`
	HabitID string     `json:"habitId"`
	Date    string     `json:"date"`
	Genre   BookGenre  `json:"genre"`
	Status  BookStatus `json:"status"`
	Title   string     `json:"title"`
	Count   *int       `json:"count,omitempty"`
}

// CloneReadingLogs 复制读书记录列表。
func CloneReadingLogs(logs []ReadingLog) []ReadingLog {
	if logs == nil {
		return nil
	}
	out := make([]ReadingLog, len(logs))
	for i, entry := range logs {
		out[i] = entry
		if entry.Count != nil {
			n := *entry.Count
			out[i].Count = &n
		}
	}
	return out
}
