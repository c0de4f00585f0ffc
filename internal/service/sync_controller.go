package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/store"
)

// Phase 表示同步控制器的加载阶段。
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseGuestLoaded   Phase = "guest_loaded"
	PhaseRemoteSynced  Phase = "remote_synced"
)

var (
	// ErrNotLoaded 在首次加载完成前尝试修改状态时返回
	ErrNotLoaded = errors.New("state not loaded yet")
	// ErrNotAuthenticated 在访客模式下调用需要登录的操作时返回
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrConfirmationRequired 表示强制上传需要用户显式确认
	ErrConfirmationRequired = errors.New("confirmation required")
)

// View 是控制器状态的只读快照，可直接序列化给前端。
type View struct {
	Phase           Phase               `json:"phase"`
	Identity        string              `json:"identity,omitempty"`
	State           model.State         `json:"state"`
	AIAnalysis      string              `json:"aiAnalysis"`
	AILoading       bool                `json:"aiLoading"`
	PendingDeleteID string              `json:"pendingDeleteId,omitempty"`
	AnalysisPrefs   model.AnalysisPrefs `json:"analysisPrefs"`
	ReadingHabitID  string              `json:"readingHabitId"`
}

// SyncController 持有单个设备会话的权威内存状态，
// 负责访客模式下的本机存储以及登录后与远端文档的同步。
// 所有修改在 mu 保护下串行执行；远端写入按入队顺序由 syncLoop 逐个发出，
// 远端快照也由同一个循环消费。
type SyncController struct {
	mu sync.Mutex

	defaults model.Defaults
	local    store.LocalStorage
	remote   store.DocumentStore
	now      func() time.Time
	pick     func(n int) int

	state         model.State
	phase         Phase
	identity      string
	aiText        string
	aiLoading     bool
	pendingDelete string
	prefs         model.AnalysisPrefs

	loaded     chan struct{}
	generation uint64
	cancelSub  context.CancelFunc

	// queue 中的写入在远端确认前一直保留，快照到达时叠加在其上
	queue   []pendingWrite
	wake    chan struct{}
	writeMu sync.Mutex
	writes  sync.WaitGroup
}

type pendingWrite struct {
	identity string
	doc      model.Document
}

// NewSyncController 构造处于未初始化阶段的控制器，调用 Start 后才会加载数据。
func NewSyncController(local store.LocalStorage, remote store.DocumentStore, defaults model.Defaults) *SyncController {
	if strings.TrimSpace(defaults.ReadingHabitID) == "" {
		defaults.ReadingHabitID = model.DefaultReadingHabitID
	}
	c := &SyncController{
		defaults: defaults,
		local:    local,
		remote:   remote,
		now:      time.Now,
		pick:     randomIndex,
		state:    defaults.State(),
		phase:    PhaseUninitialized,
		loaded:   make(chan struct{}),
		wake:     make(chan struct{}, 1),
		prefs:    defaultAnalysisPrefs(),
	}
	c.loadPrefs()
	return c
}

// SetClock 替换时间来源，主要用于测试。
func (c *SyncController) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// SetPicker 替换颜色随机选择函数，主要用于测试。
func (c *SyncController) SetPicker(pick func(n int) int) {
	if pick == nil {
		pick = randomIndex
	}
	c.mu.Lock()
	c.pick = pick
	c.mu.Unlock()
}

// Start 根据启动时解析到的身份进入访客或远端模式。
func (c *SyncController) Start(ctx context.Context, identity string) error {
	return c.OnIdentityChanged(ctx, identity)
}

// OnIdentityChanged 是身份变化的推送入口，空身份表示访客。
// 访客路径会从默认值重新加载本机数据；登录路径保留当前内存状态，
// 以便远端文档不存在时把访客数据作为初始快照上传。
func (c *SyncController) OnIdentityChanged(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.identity
	c.teardownLocked()
	c.resetLoadedLocked()
	c.pendingDelete = ""

	if identity == "" {
		c.identity = ""
		c.state = c.defaults.State()
		c.aiText = ""
		c.loadGuestLocked()
		c.markLoadedLocked(PhaseGuestLoaded)
		return nil
	}

	if previous != "" && previous != identity {
		c.state = c.defaults.State()
	}
	c.identity = identity

	if c.remote == nil {
		return errors.New("remote document store not configured")
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ch, err := c.remote.Subscribe(subCtx, identity)
	if err != nil {
		cancel()
		log.Printf("[SYNC] subscribe %s failed: %v", identity, err)
		return fmt.Errorf("subscribe document: %w", err)
	}
	c.cancelSub = cancel
	go c.syncLoop(c.generation, identity, ch)
	return nil
}

// SignOut 断开远端订阅，并像冷启动一样重新进入访客模式。
func (c *SyncController) SignOut(ctx context.Context) error {
	return c.OnIdentityChanged(ctx, "")
}

// Close 断开订阅并等待排队中的远端写入完成。
func (c *SyncController) Close() {
	c.mu.Lock()
	c.teardownLocked()
	c.mu.Unlock()
	c.Flush()
}

// WaitLoaded 阻塞直到首次加载完成或 ctx 结束。
func (c *SyncController) WaitLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush 等待所有排队中的远端写入结束。
func (c *SyncController) Flush() {
	c.writes.Wait()
}

// Snapshot 返回当前状态的深拷贝。
func (c *SyncController) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return View{
		Phase:           c.phase,
		Identity:        c.identity,
		State:           c.state.Clone(),
		AIAnalysis:      c.aiText,
		AILoading:       c.aiLoading,
		PendingDeleteID: c.pendingDelete,
		AnalysisPrefs: model.AnalysisPrefs{
			HiddenHabitIDs: append([]string{}, c.prefs.HiddenHabitIDs...),
			ShowStreaks:    c.prefs.ShowStreaks,
		},
		ReadingHabitID: c.defaults.ReadingHabitID,
	}
}

// Phase 返回当前阶段。
func (c *SyncController) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Identity 返回当前身份，访客为空字符串。
func (c *SyncController) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// ForceUpload 用完整的本地快照覆盖远端文档。
// 该操作会丢弃其他设备尚未同步的写入，因此必须显式确认。
func (c *SyncController) ForceUpload(ctx context.Context, confirmed bool) error {
	c.mu.Lock()
	if c.phase == PhaseUninitialized {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.identity == "" {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !confirmed {
		c.mu.Unlock()
		return ErrConfirmationRequired
	}
	identity := c.identity
	doc := model.DocumentFrom(c.state, model.AllFields...)
	c.mu.Unlock()

	// 先让排队的合并写入落地，避免它们晚于整体覆盖到达
	c.Flush()
	if err := c.remote.Overwrite(ctx, identity, doc); err != nil {
		log.Printf("[SYNC] force upload for %s failed: %v", identity, err)
		return fmt.Errorf("force upload: %w", err)
	}
	log.Printf("[SYNC] force upload for %s done", identity)
	return nil
}

// UpdateSettings 修改外观设置，只覆盖补丁中给出的子字段。
func (c *SyncController) UpdateSettings(patch model.SettingsPatch) (model.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return model.Settings{}, err
	}
	c.state.Settings = c.state.Settings.Apply(&patch)
	c.persistLocked(model.FieldSettings)
	return c.state.Settings, nil
}

// SetAnalysisPrefs 保存统计页偏好，与登录状态无关，始终写入本机。
func (c *SyncController) SetAnalysisPrefs(prefs model.AnalysisPrefs) model.AnalysisPrefs {
	c.mu.Lock()
	defer c.mu.Unlock()

	hidden := make([]string, 0, len(prefs.HiddenHabitIDs))
	seen := make(map[string]struct{}, len(prefs.HiddenHabitIDs))
	for _, id := range prefs.HiddenHabitIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		hidden = append(hidden, id)
	}
	c.prefs = model.AnalysisPrefs{HiddenHabitIDs: hidden, ShowStreaks: prefs.ShowStreaks}

	c.writeLocalJSON(store.KeyHiddenAnalysis, c.prefs.HiddenHabitIDs)
	c.writeLocalJSON(store.KeyShowStreaks, c.prefs.ShowStreaks)
	return c.prefs
}

// ResetData 清空打卡、读书与作业记录，并把习惯和作业标签恢复为默认值。外观设置保持不变。
func (c *SyncController) ResetData() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return err
	}

	fresh := c.defaults.State()
	c.state.Habits = fresh.Habits
	c.state.Records = fresh.Records
	c.state.ReadingLogs = fresh.ReadingLogs
	c.state.WorkLogs = fresh.WorkLogs
	c.state.WorkTags = fresh.WorkTags
	c.pendingDelete = ""
	c.persistLocked(model.FieldHabits, model.FieldRecords, model.FieldReadingLogs, model.FieldWorkLogs, model.FieldWorkTags)
	return nil
}

// syncLoop 是远端会话唯一的后台循环：按序发出排队的写入，并消费远端快照。
// 写入进行中不会读取快照，因此取到的快照不会早于本会话已完成的写入。
// 订阅结束后先把剩余写入发完再退出。
func (c *SyncController) syncLoop(generation uint64, identity string, snaps <-chan store.Snapshot) {
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				c.drainWrites()
				return
			}
			c.applySnapshot(generation, identity, snap)
		case <-c.wake:
			c.drainWrites()
		}
	}
}

// applySnapshot 采纳远端快照。generation 变化说明会话已切换，旧快照直接丢弃。
func (c *SyncController) applySnapshot(generation uint64, identity string, snap store.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		return
	}

	if snap.Exists {
		next := c.state.Adopt(snap.Document)
		for _, w := range c.queue {
			if w.identity == identity {
				next = next.Adopt(w.doc)
			}
		}
		c.state = next
	} else {
		// 远端还没有文档：以当前内存状态作为初始快照写入，无论成功与否都视为已同步。
		initial := model.DocumentFrom(c.state, model.FieldHabits, model.FieldRecords, model.FieldReadingLogs, model.FieldSettings)
		log.Printf("[SYNC] document for %s missing, uploading initial snapshot", identity)
		c.enqueueRemoteLocked(identity, initial)
	}

	if c.phase == PhaseUninitialized {
		c.markLoadedLocked(PhaseRemoteSynced)
	}
}

func (c *SyncController) teardownLocked() {
	c.generation++
	if c.cancelSub != nil {
		c.cancelSub()
		c.cancelSub = nil
	}
}

func (c *SyncController) resetLoadedLocked() {
	if c.phase != PhaseUninitialized {
		c.loaded = make(chan struct{})
	}
	c.phase = PhaseUninitialized
}

func (c *SyncController) markLoadedLocked(phase Phase) {
	c.phase = phase
	select {
	case <-c.loaded:
	default:
		close(c.loaded)
	}
}

func (c *SyncController) ensureLoadedLocked() error {
	if c.phase == PhaseUninitialized {
		return ErrNotLoaded
	}
	return nil
}

// persistLocked 把被修改的字段写出：访客模式逐槽同步写入本机，登录模式异步合并写入远端。
func (c *SyncController) persistLocked(fields ...model.Field) {
	if c.phase == PhaseUninitialized {
		return
	}
	if c.identity != "" {
		c.enqueueRemoteLocked(c.identity, model.DocumentFrom(c.state, fields...))
		return
	}

	for _, field := range fields {
		switch field {
		case model.FieldHabits:
			c.writeLocalJSON(store.KeyHabits, c.state.Habits)
		case model.FieldRecords:
			c.writeLocalJSON(store.KeyRecords, c.state.Records)
		case model.FieldReadingLogs:
			c.writeLocalJSON(store.KeyReadingLogs, c.state.ReadingLogs)
		case model.FieldWorkLogs:
			c.writeLocalJSON(store.KeyWorkLogs, c.state.WorkLogs)
		case model.FieldWorkTags:
			c.writeLocalJSON(store.KeyWorkTags, c.state.WorkTags)
		case model.FieldSettings:
			c.writeLocalString(store.KeyBgColor, c.state.Settings.BackgroundColor)
			c.writeLocalString(store.KeyBgImage, c.state.Settings.BackgroundImage)
		}
	}
}

// enqueueRemoteLocked 把一次合并写入排入队列，不等待结果。
// 没有活跃订阅时（例如 Close 之后）单独起一个协程把队列发完。
func (c *SyncController) enqueueRemoteLocked(identity string, doc model.Document) {
	if c.remote == nil {
		return
	}
	c.queue = append(c.queue, pendingWrite{identity: identity, doc: doc})
	c.writes.Add(1)

	if c.cancelSub == nil {
		go c.drainWrites()
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drainWrites 按入队顺序逐个发出合并写入，失败只记录日志。
// 条目在写入完成后才出队；writeMu 保证同一时刻只有一个协程在发。
func (c *SyncController) drainWrites() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.mu.Unlock()

		if err := c.remote.Merge(context.Background(), next.identity, next.doc); err != nil {
			log.Printf("[SYNC] merge write for %s failed: %v", next.identity, err)
		}

		c.mu.Lock()
		c.queue[0] = pendingWrite{}
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.writes.Done()
	}
}

func (c *SyncController) writeLocalJSON(key string, value any) {
	if c.local == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("[STORE] encode %s failed: %v", key, err)
		return
	}
	c.writeLocalString(key, string(raw))
}

func (c *SyncController) writeLocalString(key, value string) {
	if c.local == nil {
		return
	}
	if err := c.local.Set(key, value); err != nil {
		log.Printf("[STORE] write %s failed: %v", key, err)
	}
}

// loadGuestLocked 逐槽读取本机数据，缺失或无法解析的槽位保留默认值。
func (c *SyncController) loadGuestLocked() {
	if c.local == nil {
		return
	}

	var habits []model.Habit
	if c.readLocalJSON(store.KeyHabits, &habits) && habits != nil {
		c.state.Habits = habits
	}
	var records model.RecordMap
	if c.readLocalJSON(store.KeyRecords, &records) && records != nil {
		c.state.Records = records
	}
	var readingLogs []model.ReadingLog
	if c.readLocalJSON(store.KeyReadingLogs, &readingLogs) && readingLogs != nil {
		c.state.ReadingLogs = readingLogs
	}
	var workLogs model.DailyWorkLog
	if c.readLocalJSON(store.KeyWorkLogs, &workLogs) && workLogs != nil {
		c.state.WorkLogs = workLogs
	}
	var workTags []model.WorkTag
	if c.readLocalJSON(store.KeyWorkTags, &workTags) && workTags != nil {
		c.state.WorkTags = workTags
	}
	if val, ok := c.readLocalString(store.KeyBgColor); ok {
		c.state.Settings.BackgroundColor = val
	}
	if val, ok := c.readLocalString(store.KeyBgImage); ok {
		c.state.Settings.BackgroundImage = val
	}
	if val, ok := c.readLocalString(store.KeyAIAnalysis); ok {
		c.aiText = val
	}
}

// loadPrefs 读取与登录状态无关的本机数据：统计偏好和上次的周报文本。
func (c *SyncController) loadPrefs() {
	if c.local == nil {
		return
	}
	if val, ok := c.readLocalString(store.KeyAIAnalysis); ok {
		c.aiText = val
	}
	var hidden []string
	if c.readLocalJSON(store.KeyHiddenAnalysis, &hidden) && hidden != nil {
		c.prefs.HiddenHabitIDs = hidden
	}
	var showStreaks bool
	if c.readLocalJSON(store.KeyShowStreaks, &showStreaks) {
		c.prefs.ShowStreaks = showStreaks
	}
}

func (c *SyncController) readLocalString(key string) (string, bool) {
	val, ok, err := c.local.Get(key)
	if err != nil {
		log.Printf("[STORE] read %s failed: %v", key, err)
		return "", false
	}
	return val, ok
}

// readLocalJSON 解析失败时按“无数据”处理。
func (c *SyncController) readLocalJSON(key string, dst any) bool {
	raw, ok := c.readLocalString(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Printf("[STORE] ignore malformed %s: %v", key, err)
		return false
	}
	return true
}

func defaultAnalysisPrefs() model.AnalysisPrefs {
	return model.AnalysisPrefs{HiddenHabitIDs: []string{}, ShowStreaks: true}
}
