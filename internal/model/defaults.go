package model

// Defaults 是控制器初始化时使用的不可变默认配置。
// 每次调用 State() 都返回新的副本，调用方可以自由修改。
type Defaults struct {
	Habits         []Habit
	WorkTags       []WorkTag
	Settings       Settings
	ReadingHabitID string
}

// State 基于默认配置构造一份全新的状态。
func (d Defaults) State() State {
	return State{
		Habits:      CloneHabits(d.Habits),
		Records:     RecordMap{},
		ReadingLogs: []ReadingLog{},
		WorkLogs:    DailyWorkLog{},
		WorkTags:    CloneWorkTags(d.WorkTags),
		Settings:    d.Settings,
	}
}

// DefaultReadingHabitID 是默认配置中“读书”习惯的 ID。
const DefaultReadingHabitID = "h1"

// DefaultConfig 返回内置的默认习惯、作业标签与外观设置。
func DefaultConfig() Defaults {
	return Defaults{
		Habits: []Habit{
			{ID: "h1", Name: "読書", Icon: string(IconBookOpen), Color: "bg-blue-500"},
			{ID: "h2", Name: "動画編集", Icon: string(IconVideo), Color: "bg-red-500"},
			{ID: "h3", Name: "写真編集", Icon: string(IconImage), Color: "bg-pink-500"},
			{ID: "h4", Name: "日記", Icon: string(IconPenTool), Color: "bg-yellow-500"},
			{ID: "h5", Name: "Drawthings", Icon: string(IconActivity), Color: "bg-purple-500"},
			{ID: "h6", Name: "朝活", Icon: string(IconSunrise), Color: "bg-orange-500"},
			{ID: "h7", Name: "スタバで作業", Icon: string(IconCoffee), Color: "bg-green-600"},
			{ID: "h8", Name: "直帰", Icon: string(IconHome), Color: "bg-teal-500"},
			{ID: "h9", Name: "プログラミング学習", Icon: string(IconCode), Color: "bg-indigo-600"},
			{ID: "h10", Name: "note記事作成", Icon: string(IconFileText), Color: "bg-emerald-500"},
		},
		WorkTags: []WorkTag{
			{ID: "work_outpatient", Label: "診療：外来", Order: 1, IsActive: true},
			{ID: "work_surgery", Label: "診療：手術", Order: 2, IsActive: true},
			{ID: "work_delivery", Label: "診療：分娩・LDR", Order: 3, IsActive: true},
			{ID: "work_emergency", Label: "診療：救急・当直対応", Order: 4, IsActive: true},
			{ID: "work_committee", Label: "院内業務・委員会", Order: 5, IsActive: true},
			{ID: "work_housework", Label: "家事", Order: 6, IsActive: true},
			{ID: "work_childcare", Label: "育児・家族時間", Order: 7, IsActive: true},
			{ID: "work_creative", Label: "クリエイティブ", Order: 8, IsActive: true},
			{ID: "work_info_search", Label: "情報収集・物欲検索", Order: 9, IsActive: true},
		},
		Settings:       Settings{BackgroundColor: "bg-slate-50"},
		ReadingHabitID: DefaultReadingHabitID,
	}
}
