package view

import "github.com/habitlog/internal/model"

// HabitIconOption describes a selectable icon option for habits.
type HabitIconOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type habitIconAsset struct {
	Key   model.Icon
	Label string
	Paths string
}

const (
	svgOpen  = `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round" aria-hidden="true">`
	svgClose = `</svg>`
)

var (
	habitIconDefinitions = []habitIconAsset{
		{Key: model.IconBookOpen, Label: "読書", Paths: `<path d="M2 3h6a4 4 0 0 1 4 4v14a3 3 0 0 0-3-3H2z"/><path d="M22 3h-6a4 4 0 0 0-4 4v14a3 3 0 0 1 3-3h7z"/>`},
		{Key: model.IconVideo, Label: "動画", Paths: `<path d="m22 8-6 4 6 4V8Z"/><rect width="14" height="12" x="2" y="6" rx="2" ry="2"/>`},
		{Key: model.IconImage, Label: "写真", Paths: `<rect width="18" height="18" x="3" y="3" rx="2" ry="2"/><circle cx="9" cy="9" r="2"/><path d="m21 15-3.086-3.086a2 2 0 0 0-2.828 0L6 21"/>`},
		{Key: model.IconPenTool, Label: "ペン", Paths: `<path d="m12 19 7-7 3 3-7 7-3-3z"/><path d="m18 13-1.5-7.5L2 2l3.5 14.5L13 18l5-5z"/><path d="m2 2 7.586 7.586"/><circle cx="11" cy="11" r="2"/>`},
		{Key: model.IconActivity, Label: "アクティビティ", Paths: `<path d="M22 12h-4l-3 9L9 3l-3 9H2"/>`},
		{Key: model.IconSunrise, Label: "朝", Paths: `<path d="M12 2v8"/><path d="m4.93 10.93 1.41 1.41"/><path d="M2 18h2"/><path d="M20 18h2"/><path d="m19.07 10.93-1.41 1.41"/><path d="M22 22H2"/><path d="m8 6 4-4 4 4"/><path d="M16 18a4 4 0 0 0-8 0"/>`},
		{Key: model.IconCoffee, Label: "カフェ", Paths: `<path d="M17 8h1a4 4 0 1 1 0 8h-1"/><path d="M3 8h14v9a4 4 0 0 1-4 4H7a4 4 0 0 1-4-4Z"/><line x1="6" x2="6" y1="2" y2="4"/><line x1="10" x2="10" y1="2" y2="4"/><line x1="14" x2="14" y1="2" y2="4"/>`},
		{Key: model.IconHome, Label: "家", Paths: `<path d="m3 9 9-7 9 7v11a2 2 0 0 1-2 2H5a2 2 0 0 1-2-2z"/><polyline points="9 22 9 12 15 12 15 22"/>`},
		{Key: model.IconCode, Label: "コード", Paths: `<polyline points="16 18 22 12 16 6"/><polyline points="8 6 2 12 8 18"/>`},
		{Key: model.IconFileText, Label: "文書", Paths: `<path d="M15 2H6a2 2 0 0 0-2 2v16a2 2 0 0 0 2 2h12a2 2 0 0 0 2-2V7Z"/><path d="M14 2v4a2 2 0 0 0 2 2h4"/><path d="M10 9H8"/><path d="M16 13H8"/><path d="M16 17H8"/>`},
		{Key: model.IconCheck, Label: "チェック", Paths: `<path d="M20 6 9 17l-5-5"/>`},
		{Key: model.IconList, Label: "リスト", Paths: `<line x1="8" x2="21" y1="6" y2="6"/><line x1="8" x2="21" y1="12" y2="12"/><line x1="8" x2="21" y1="18" y2="18"/><line x1="3" x2="3.01" y1="6" y2="6"/><line x1="3" x2="3.01" y1="12" y2="12"/><line x1="3" x2="3.01" y1="18" y2="18"/>`},
		{Key: model.IconBarChart, Label: "グラフ", Paths: `<line x1="18" x2="18" y1="20" y2="10"/><line x1="12" x2="12" y1="20" y2="4"/><line x1="6" x2="6" y1="20" y2="14"/>`},
		{Key: model.IconCalendar, Label: "カレンダー", Paths: `<rect width="18" height="18" x="3" y="4" rx="2" ry="2"/><line x1="16" x2="16" y1="2" y2="6"/><line x1="8" x2="8" y1="2" y2="6"/><line x1="3" x2="21" y1="10" y2="10"/>`},
		{Key: model.IconSparkles, Label: "ひらめき", Paths: `<path d="m12 3-1.912 5.813a2 2 0 0 1-1.275 1.275L3 12l5.813 1.912a2 2 0 0 1 1.275 1.275L12 21l1.912-5.813a2 2 0 0 1 1.275-1.275L21 12l-5.813-1.912a2 2 0 0 1-1.275-1.275L12 3Z"/>`},
	}
	habitIconLookup = func() map[model.Icon]habitIconAsset {
		lookup := make(map[model.Icon]habitIconAsset, len(habitIconDefinitions))
		for _, icon := range habitIconDefinitions {
			lookup[icon.Key] = icon
		}
		return lookup
	}()
)

// HabitIconOptions exposes the selectable icon metadata for the habit editor.
func HabitIconOptions() []HabitIconOption {
	options := make([]HabitIconOption, 0, len(habitIconDefinitions))
	for _, icon := range habitIconDefinitions {
		options = append(options, HabitIconOption{Key: string(icon.Key), Label: icon.Label})
	}
	return options
}

// HabitIconSVGMap returns a fresh key-to-SVG map.
func HabitIconSVGMap() map[string]string {
	out := make(map[string]string, len(habitIconLookup))
	for key, icon := range habitIconLookup {
		out[string(key)] = svgOpen + icon.Paths + svgClose
	}
	return out
}

// HabitIconSVG resolves the SVG for a stored icon name; unknown names fall back to the default icon.
func HabitIconSVG(name string) string {
	icon := habitIconLookup[model.ResolveIcon(name)]
	return svgOpen + icon.Paths + svgClose
}
