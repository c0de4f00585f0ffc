package model

// Settings 是每个用户/设备唯一的外观设置。
type Settings struct {
	BackgroundColor string `json:"backgroundColor"`
	BackgroundImage string `json:"backgroundImage"`
}

// SettingsPatch 描述远端文档中的 settings 字段，nil 表示该子字段缺失。
type SettingsPatch struct {
	BackgroundColor *string `json:"backgroundColor,omitempty"`
	BackgroundImage *string `json:"backgroundImage,omitempty"`
}

// Patch 将完整设置转换为两个子字段都存在的补丁。
func (s Settings) Patch() *SettingsPatch {
	color := s.BackgroundColor
	image := s.BackgroundImage
	return &SettingsPatch{BackgroundColor: &color, BackgroundImage: &image}
}

// Apply 只覆盖补丁中存在的子字段。
func (s Settings) Apply(p *SettingsPatch) Settings {
	if p == nil {
		return s
	}
	if p.BackgroundColor != nil {
		s.BackgroundColor = *p.BackgroundColor
	}
	if p.BackgroundImage != nil {
		s.BackgroundImage = *p.BackgroundImage
	}
	return s
}

// BackgroundColors 是设置面板中可选的背景色。
var BackgroundColors = []string{
	"bg-slate-50", "bg-gray-50", "bg-zinc-50", "bg-neutral-50", "bg-stone-50",
	"bg-red-50", "bg-orange-50", "bg-amber-50", "bg-yellow-50", "bg-lime-50",
	"bg-green-50", "bg-emerald-50", "bg-teal-50", "bg-cyan-50", "bg-sky-50",
	"bg-blue-50", "bg-indigo-50", "bg-violet-50", "bg-purple-50", "bg-fuchsia-50",
	"bg-pink-50", "bg-rose-50",
}

// AnalysisPrefs 是统计页的本地显示偏好，与登录状态无关，始终只保存在本机。
type AnalysisPrefs struct {
	HiddenHabitIDs []string `json:"hiddenHabitIds"`
	ShowStreaks    bool     `json:"showStreaks"`
}
