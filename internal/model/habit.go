package model

// Habit 表示一个按日打卡的习惯。
// 列表中的位置即展示顺序，没有独立的排序字段。
type Habit struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Icon 是习惯图标的符号名，具体渲染由展示层决定。
type Icon string

const (
	IconBookOpen Icon = "BookOpen"
	IconVideo    Icon = "Video"
	IconImage    Icon = "ImageIcon"
	IconPenTool  Icon = "PenTool"
	IconActivity Icon = "Activity"
	IconSunrise  Icon = "Sunrise"
	IconCoffee   Icon = "Coffee"
	IconHome     Icon = "Home"
	IconCode     Icon = "Code"
	IconFileText Icon = "FileText"
	IconCheck    Icon = "Check"
	IconList     Icon = "List"
	IconBarChart Icon = "BarChart2"
	IconCalendar Icon = "CalendarIcon"
	IconSparkles Icon = "Sparkles"
	DefaultIcon       = IconActivity
)

var knownIcons = map[Icon]struct{}{
	IconBookOpen: {}, IconVideo: {}, IconImage: {}, IconPenTool: {}, IconActivity: {},
	IconSunrise: {}, IconCoffee: {}, IconHome: {}, IconCode: {}, IconFileText: {},
	IconCheck: {}, IconList: {}, IconBarChart: {}, IconCalendar: {}, IconSparkles: {},
}

// ResolveIcon 将存储的图标名映射到已知枚举，未知名称回退到 Activity。
func ResolveIcon(name string) Icon {
	icon := Icon(name)
	if _, ok := knownIcons[icon]; ok {
		return icon
	}
	return DefaultIcon
}

// ColorPalette 是新建习惯时随机抽取的颜色。
var ColorPalette = []string{
	"bg-red-500", "bg-orange-500", "bg-amber-500", "bg-yellow-500",
	"bg-lime-500", "bg-green-500", "bg-emerald-500", "bg-teal-500",
	"bg-cyan-500", "bg-sky-500", "bg-blue-500", "bg-indigo-500",
	"bg-violet-500", "bg-purple-500", "bg-fuchsia-500", "bg-pink-500", "bg-rose-500",
}

// FindHabit 按 ID 查找习惯，返回其下标；不存在时为 -1。
func FindHabit(habits []Habit, id string) int {
	for i, habit := range habits {
		if habit.ID == id {
			return i
		}
	}
	return -1
}

// HabitNames 构建 ID -> 名称 的查找表。
func HabitNames(habits []Habit) map[string]string {
	names := make(map[string]string, len(habits))
	for _, habit := range habits {
		names[habit.ID] = habit.Name
	}
	return names
}

// CloneHabits 返回习惯列表的副本；nil 保持为 nil。
func CloneHabits(habits []Habit) []Habit {
	if habits == nil {
		return nil
	}
	out := make([]Habit, len(habits))
	copy(out, habits)
	return out
}
