package model

// State 是内存中的权威状态，远端模式下作为单个文档整体同步。
type State struct {
	Habits      []Habit      `json:"habits"`
	Records     RecordMap    `json:"records"`
	ReadingLogs []ReadingLog `json:"readingLogs"`
	WorkLogs    DailyWorkLog `json:"workLogs"`
	WorkTags    []WorkTag    `json:"workTags"`
	Settings    Settings     `json:"settings"`
}

// Clone 深拷贝状态。
func (s State) Clone() State {
	return State{
		Habits:      CloneHabits(s.Habits),
		Records:     s.Records.Clone(),
		ReadingLogs: CloneReadingLogs(s.ReadingLogs),
		WorkLogs:    s.WorkLogs.Clone(),
		WorkTags:    CloneWorkTags(s.WorkTags),
		Settings:    s.Settings,
	}
}

// Field 标识文档中的顶层字段。
type Field string

const (
	FieldHabits      Field = "habits"
	FieldRecords     Field = "records"
	FieldReadingLogs Field = "readingLogs"
	FieldWorkLogs    Field = "workLogs"
	FieldWorkTags    Field = "workTags"
	FieldSettings    Field = "settings"
)

// AllFields 按固定顺序列出全部顶层字段。
var AllFields = []Field{FieldHabits, FieldRecords, FieldReadingLogs, FieldWorkLogs, FieldWorkTags, FieldSettings}

// Document 是远端文档的视图。nil 字段表示文档中缺失该字段，
// 采纳时保持内存值不变；合并写入时不触碰远端对应字段。
type Document struct {
	Habits      []Habit        `json:"habits,omitempty"`
	Records     RecordMap      `json:"records,omitempty"`
	ReadingLogs []ReadingLog   `json:"readingLogs,omitempty"`
	WorkLogs    DailyWorkLog   `json:"workLogs,omitempty"`
	WorkTags    []WorkTag      `json:"workTags,omitempty"`
	Settings    *SettingsPatch `json:"settings,omitempty"`
}

// DocumentFrom 从状态中挑选指定字段构造文档，保证被挑选的字段非 nil。
func DocumentFrom(s State, fields ...Field) Document {
	var doc Document
	for _, field := range fields {
		switch field {
		case FieldHabits:
			doc.Habits = CloneHabits(s.Habits)
			if doc.Habits == nil {
				doc.Habits = []Habit{}
			}
		case FieldRecords:
			doc.Records = s.Records.Clone()
			if doc.Records == nil {
				doc.Records = RecordMap{}
			}
		case FieldReadingLogs:
			doc.ReadingLogs = CloneReadingLogs(s.ReadingLogs)
			if doc.ReadingLogs == nil {
				doc.ReadingLogs = []ReadingLog{}
			}
		case FieldWorkLogs:
			doc.WorkLogs = s.WorkLogs.Clone()
			if doc.WorkLogs == nil {
				doc.WorkLogs = DailyWorkLog{}
			}
		case FieldWorkTags:
			doc.WorkTags = CloneWorkTags(s.WorkTags)
			if doc.WorkTags == nil {
				doc.WorkTags = []WorkTag{}
			}
		case FieldSettings:
			doc.Settings = s.Settings.Patch()
		}
	}
	return doc
}

// Adopt 把文档中存在的字段覆盖到状态上，缺失字段保持原值。
func (s State) Adopt(doc Document) State {
	next := s.Clone()
	if doc.Habits != nil {
		next.Habits = CloneHabits(doc.Habits)
	}
	if doc.Records != nil {
		next.Records = doc.Records.Clone()
	}
	if doc.ReadingLogs != nil {
		next.ReadingLogs = CloneReadingLogs(doc.ReadingLogs)
	}
	if doc.WorkLogs != nil {
		next.WorkLogs = doc.WorkLogs.Clone()
	}
	if doc.WorkTags != nil {
		next.WorkTags = CloneWorkTags(doc.WorkTags)
	}
	next.Settings = next.Settings.Apply(doc.Settings)
	return next
}
