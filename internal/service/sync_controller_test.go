package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc-%s-%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	gdb, err := db.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return gdb
}

func testDefaults() model.Defaults {
	return model.Defaults{
		Habits: []model.Habit{
			{ID: "h1", Name: "読書", Icon: "BookOpen", Color: "bg-blue-500"},
			{ID: "h2", Name: "日記", Icon: "PenTool", Color: "bg-yellow-500"},
		},
		WorkTags: []model.WorkTag{
			{ID: "t1", Label: "外来", Order: 1, IsActive: true},
			{ID: "t2", Label: "手術", Order: 2, IsActive: true},
			{ID: "t3", Label: "家事", Order: 3, IsActive: false},
		},
		Settings:       model.Settings{BackgroundColor: "bg-slate-50"},
		ReadingHabitID: "h1",
	}
}

func newGuestController(t *testing.T) (*SyncController, *store.MemoryLocal) {
	t.Helper()
	local := store.NewMemoryLocal()
	ctrl := NewSyncController(local, nil, testDefaults())
	ctrl.SetClock(func() time.Time { return testNow })
	ctrl.SetPicker(func(int) int { return 0 })
	if err := ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return ctrl, local
}

func newRemoteController(t *testing.T, local store.LocalStorage) (*SyncController, *store.GormDocuments) {
	t.Helper()
	docs := store.NewGormDocuments(setupServiceDB(t))
	if local == nil {
		local = store.NewMemoryLocal()
	}
	ctrl := NewSyncController(local, docs, testDefaults())
	ctrl.SetClock(func() time.Time { return testNow })
	ctrl.SetPicker(func(int) int { return 0 })
	t.Cleanup(ctrl.Close)
	return ctrl, docs
}

func waitLoaded(t *testing.T, ctrl *SyncController) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ctrl.WaitLoaded(ctx); err != nil {
		t.Fatalf("controller did not load: %v", err)
	}
}

func eventually(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func habitIDs(habits []model.Habit) []string {
	ids := make([]string, 0, len(habits))
	for _, h := range habits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestSyncControllerGuestLoadDefaults(t *testing.T) {
	ctrl, _ := newGuestController(t)

	view := ctrl.Snapshot()
	if view.Phase != PhaseGuestLoaded {
		t.Fatalf("expected guest phase, got %s", view.Phase)
	}
	if got := strings.Join(habitIDs(view.State.Habits), ","); got != "h1,h2" {
		t.Fatalf("unexpected default habits: %s", got)
	}
	if view.State.Settings.BackgroundColor != "bg-slate-50" {
		t.Fatalf("unexpected default settings: %+v", view.State.Settings)
	}
	if !view.AnalysisPrefs.ShowStreaks {
		t.Fatal("streaks should be shown by default")
	}
}

func TestSyncControllerGuestLoadSlots(t *testing.T) {
	local := store.NewMemoryLocal()
	_ = local.Set(store.KeyHabits, `[{"id":"a","name":"A","icon":"Activity","color":"bg-red-500"}]`)
	_ = local.Set(store.KeyRecords, `{"2024-03-09":["a"]}`)
	_ = local.Set(store.KeyReadingLogs, `not json`)
	_ = local.Set(store.KeyBgColor, "bg-rose-50")
	_ = local.Set(store.KeyAIAnalysis, "前回のレビュー")
	_ = local.Set(store.KeyHiddenAnalysis, `["h2"]`)
	_ = local.Set(store.KeyShowStreaks, `false`)

	ctrl := NewSyncController(local, nil, testDefaults())
	if err := ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	view := ctrl.Snapshot()
	if got := strings.Join(habitIDs(view.State.Habits), ","); got != "a" {
		t.Fatalf("expected habits from local slot, got %s", got)
	}
	if !view.State.Records.Completed("2024-03-09", "a") {
		t.Fatal("expected records from local slot")
	}
	if view.State.ReadingLogs == nil || len(view.State.ReadingLogs) != 0 {
		t.Fatalf("malformed slot should keep the default, got %#v", view.State.ReadingLogs)
	}
	if view.State.Settings.BackgroundColor != "bg-rose-50" || view.State.Settings.BackgroundImage != "" {
		t.Fatalf("unexpected settings: %+v", view.State.Settings)
	}
	if view.AIAnalysis != "前回のレビュー" {
		t.Fatalf("unexpected cached review: %q", view.AIAnalysis)
	}
	if len(view.AnalysisPrefs.HiddenHabitIDs) != 1 || view.AnalysisPrefs.ShowStreaks {
		t.Fatalf("unexpected analysis prefs: %+v", view.AnalysisPrefs)
	}
	if len(view.State.WorkTags) != 3 {
		t.Fatalf("missing work tag slot should keep defaults, got %d", len(view.State.WorkTags))
	}
}

func TestSyncControllerRejectsMutationBeforeLoad(t *testing.T) {
	ctrl := NewSyncController(store.NewMemoryLocal(), nil, testDefaults())

	if _, err := ctrl.ToggleHabit("2024-03-10", "h1"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if _, _, err := ctrl.AddHabit("ジョギング"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ctrl.WaitLoaded(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSyncControllerGuestPersistsTouchedSlotOnly(t *testing.T) {
	ctrl, local := newGuestController(t)

	if _, err := ctrl.ToggleHabit("2024-03-10", "h2"); err != nil {
		t.Fatalf("ToggleHabit returned error: %v", err)
	}

	raw, ok, _ := local.Get(store.KeyRecords)
	if !ok {
		t.Fatal("expected records slot to be written")
	}
	var records model.RecordMap
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("records slot is not JSON: %v", err)
	}
	if !records.Completed("2024-03-10", "h2") {
		t.Fatalf("unexpected records slot: %s", raw)
	}
	if _, ok, _ := local.Get(store.KeyHabits); ok {
		t.Fatal("habits slot should not be written by a toggle")
	}

	if _, err := ctrl.UpdateSettings(model.SettingsPatch{BackgroundImage: strPtr("/uploads/bg.webp")}); err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if val, _, _ := local.Get(store.KeyBgImage); val != "/uploads/bg.webp" {
		t.Fatalf("unexpected bg image slot: %q", val)
	}
	if val, _, _ := local.Get(store.KeyBgColor); val != "bg-slate-50" {
		t.Fatalf("unexpected bg color slot: %q", val)
	}
}

func TestSyncControllerGuestToRemoteUploadsInitialSnapshot(t *testing.T) {
	local := store.NewMemoryLocal()
	_ = local.Set(store.KeyHabits, `[{"id":"A","name":"A"},{"id":"B","name":"B"}]`)
	ctrl, docs := newRemoteController(t, local)
	ctx := context.Background()

	if err := ctrl.Start(ctx, ""); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := ctrl.OnIdentityChanged(ctx, "alice"); err != nil {
		t.Fatalf("OnIdentityChanged returned error: %v", err)
	}
	waitLoaded(t, ctrl)
	ctrl.Flush()

	if ctrl.Phase() != PhaseRemoteSynced {
		t.Fatalf("expected remote phase, got %s", ctrl.Phase())
	}

	snap, err := docs.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !snap.Exists {
		t.Fatal("expected document to be created")
	}
	doc := snap.Document
	if got := strings.Join(habitIDs(doc.Habits), ","); got != "A,B" {
		t.Fatalf("unexpected uploaded habits: %s", got)
	}
	if doc.Records == nil || len(doc.Records) != 0 {
		t.Fatalf("expected empty records, got %#v", doc.Records)
	}
	if doc.ReadingLogs == nil || len(doc.ReadingLogs) != 0 {
		t.Fatalf("expected empty reading logs, got %#v", doc.ReadingLogs)
	}
	if doc.Settings == nil || doc.Settings.BackgroundColor == nil {
		t.Fatal("expected settings to be uploaded")
	}
	if doc.WorkLogs != nil || doc.WorkTags != nil {
		t.Fatal("initial snapshot should only contain habits, records, readingLogs and settings")
	}
}

func TestSyncControllerRemoteWins(t *testing.T) {
	local := store.NewMemoryLocal()
	_ = local.Set(store.KeyHabits, `[{"id":"A","name":"A"},{"id":"B","name":"B"}]`)
	ctrl, docs := newRemoteController(t, local)
	ctx := context.Background()

	if err := docs.Merge(ctx, "alice", model.Document{Habits: []model.Habit{{ID: "X", Name: "X"}}}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	if err := ctrl.Start(ctx, ""); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := ctrl.OnIdentityChanged(ctx, "alice"); err != nil {
		t.Fatalf("OnIdentityChanged returned error: %v", err)
	}
	waitLoaded(t, ctrl)

	view := ctrl.Snapshot()
	if got := strings.Join(habitIDs(view.State.Habits), ","); got != "X" {
		t.Fatalf("expected remote habits to win, got %s", got)
	}
	if len(view.State.WorkTags) != 3 {
		t.Fatal("absent remote fields should keep in-memory values")
	}
}

func TestSyncControllerAdoptsRemoteChanges(t *testing.T) {
	ctrl, docs := newRemoteController(t, nil)
	ctx := context.Background()

	if err := ctrl.Start(ctx, "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)
	ctrl.Flush()

	other := model.Document{
		Records:  model.RecordMap{"2024-03-08": {"h1"}},
		Settings: &model.SettingsPatch{BackgroundImage: strPtr("/uploads/other.webp")},
	}
	if err := docs.Merge(ctx, "alice", other); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}

	eventually(t, "remote change was not adopted", func() bool {
		view := ctrl.Snapshot()
		return view.State.Records.Completed("2024-03-08", "h1") &&
			view.State.Settings.BackgroundImage == "/uploads/other.webp" &&
			view.State.Settings.BackgroundColor == "bg-slate-50"
	})
}

func TestSyncControllerRemoteMutationMergesTouchedField(t *testing.T) {
	ctrl, docs := newRemoteController(t, nil)
	ctx := context.Background()

	if err := docs.Merge(ctx, "alice", model.Document{
		Habits:   []model.Habit{{ID: "h1", Name: "読書"}},
		WorkTags: []model.WorkTag{{ID: "t9", Label: "委員会", Order: 1, IsActive: true}},
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	if err := ctrl.Start(ctx, "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)

	result, err := ctrl.ToggleHabit("2024-03-10", "h1")
	if err != nil {
		t.Fatalf("ToggleHabit returned error: %v", err)
	}
	if !result.Completed || !result.PromptReadingLog {
		t.Fatalf("unexpected toggle result: %+v", result)
	}
	ctrl.Flush()

	snap, _ := docs.Get(ctx, "alice")
	if !snap.Document.Records.Completed("2024-03-10", "h1") {
		t.Fatal("expected records to be merge-written")
	}
	if len(snap.Document.WorkTags) != 1 || snap.Document.WorkTags[0].ID != "t9" {
		t.Fatalf("work tags should be untouched, got %+v", snap.Document.WorkTags)
	}
	if snap.Document.Settings != nil {
		t.Fatal("settings should stay absent")
	}
}

func TestSyncControllerRapidRemoteWritesKeepOrder(t *testing.T) {
	ctrl, docs := newRemoteController(t, nil)
	ctx := context.Background()
	if err := ctrl.Start(ctx, "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)

	const days = 28
	for day := 1; day <= days; day++ {
		if _, err := ctrl.ToggleHabit(fmt.Sprintf("2024-02-%02d", day), "h1"); err != nil {
			t.Fatalf("ToggleHabit returned error: %v", err)
		}
	}
	ctrl.Flush()

	snap, err := docs.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	for day := 1; day <= days; day++ {
		date := fmt.Sprintf("2024-02-%02d", day)
		if !snap.Document.Records.Completed(date, "h1") {
			t.Fatalf("remote document lost %s", date)
		}
	}

	// 回传的快照不能把内存状态带回旧版本
	time.Sleep(50 * time.Millisecond)
	view := ctrl.Snapshot()
	if len(view.State.Records) != days {
		t.Fatalf("expected %d dates in memory, got %d", days, len(view.State.Records))
	}
	if !view.State.Records.Completed("2024-02-28", "h1") {
		t.Fatal("last toggle missing from memory")
	}
}

type gatedDocuments struct {
	*store.GormDocuments
	gate chan struct{}
}

func (g *gatedDocuments) Merge(ctx context.Context, uid string, doc model.Document) error {
	<-g.gate
	return g.GormDocuments.Merge(ctx, uid, doc)
}

func TestSyncControllerQueuedWritesSurviveSignOut(t *testing.T) {
	docs := store.NewGormDocuments(setupServiceDB(t))
	gated := &gatedDocuments{GormDocuments: docs, gate: make(chan struct{})}
	ctx := context.Background()

	if err := docs.Merge(ctx, "alice", model.Document{Habits: testDefaults().Habits, Records: model.RecordMap{}}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	ctrl := NewSyncController(store.NewMemoryLocal(), gated, testDefaults())
	ctrl.SetClock(func() time.Time { return testNow })
	t.Cleanup(ctrl.Close)
	release := sync.OnceFunc(func() { close(gated.gate) })
	t.Cleanup(release)
	if err := ctrl.Start(ctx, "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)

	if _, err := ctrl.ToggleHabit("2024-03-09", "h1"); err != nil {
		t.Fatalf("ToggleHabit returned error: %v", err)
	}
	// 另一台设备在本机写入落地前修改了其他字段
	if err := docs.Merge(ctx, "alice", model.Document{WorkTags: []model.WorkTag{{ID: "t9", Label: "委員会", Order: 1, IsActive: true}}}); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if !ctrl.Snapshot().State.Records.Completed("2024-03-09", "h1") {
		t.Fatal("toggle should be visible before the remote write lands")
	}

	if err := ctrl.SignOut(ctx); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	release()
	ctrl.Flush()

	snap, _ := docs.Get(ctx, "alice")
	if !snap.Document.Records.Completed("2024-03-09", "h1") {
		t.Fatal("write queued before sign out should still reach the remote document")
	}
	if len(snap.Document.WorkTags) != 1 || snap.Document.WorkTags[0].ID != "t9" {
		t.Fatalf("other device's field should be kept, got %+v", snap.Document.WorkTags)
	}
}

func TestSyncControllerSnapshotKeepsPendingWrites(t *testing.T) {
	ctrl, _ := newRemoteController(t, nil)
	if err := ctrl.Start(context.Background(), "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)
	ctrl.Flush()

	ctrl.mu.Lock()
	ctrl.queue = append(ctrl.queue, pendingWrite{
		identity: "alice",
		doc:      model.Document{Records: model.RecordMap{"2024-03-09": {"h2"}}},
	})
	generation := ctrl.generation
	ctrl.mu.Unlock()

	ctrl.applySnapshot(generation, "alice", store.Snapshot{
		Exists: true,
		Document: model.Document{
			Records:  model.RecordMap{},
			WorkTags: []model.WorkTag{{ID: "t9", Label: "委員会", Order: 1, IsActive: true}},
		},
	})

	ctrl.mu.Lock()
	ctrl.queue = nil
	ctrl.mu.Unlock()

	view := ctrl.Snapshot()
	if !view.State.Records.Completed("2024-03-09", "h2") {
		t.Fatal("pending write should be layered over the remote snapshot")
	}
	if len(view.State.WorkTags) != 1 || view.State.WorkTags[0].ID != "t9" {
		t.Fatalf("remote fields should still be adopted, got %+v", view.State.WorkTags)
	}
}

func TestSyncControllerForceUpload(t *testing.T) {
	guest, _ := newGuestController(t)
	if err := guest.ForceUpload(context.Background(), true); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	ctrl, docs := newRemoteController(t, nil)
	ctx := context.Background()
	if err := ctrl.Start(ctx, "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)
	ctrl.Flush()

	if err := ctrl.ForceUpload(ctx, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if err := ctrl.ForceUpload(ctx, true); err != nil {
		t.Fatalf("ForceUpload returned error: %v", err)
	}

	snap, _ := docs.Get(ctx, "alice")
	if snap.Document.WorkTags == nil || snap.Document.WorkLogs == nil {
		t.Fatal("force upload should write every field")
	}
	if len(snap.Document.WorkTags) != 3 {
		t.Fatalf("unexpected work tags: %+v", snap.Document.WorkTags)
	}
}

func TestSyncControllerSignOutReloadsGuest(t *testing.T) {
	local := store.NewMemoryLocal()
	_ = local.Set(store.KeyHabits, `[{"id":"g","name":"guest"}]`)
	ctrl, docs := newRemoteController(t, local)
	ctx := context.Background()

	if err := docs.Merge(ctx, "alice", model.Document{Habits: []model.Habit{{ID: "X", Name: "X"}}}); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	if err := ctrl.Start(ctx, "alice"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitLoaded(t, ctrl)

	if err := ctrl.SignOut(ctx); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	view := ctrl.Snapshot()
	if view.Phase != PhaseGuestLoaded || view.Identity != "" {
		t.Fatalf("expected guest after sign out, got %s / %q", view.Phase, view.Identity)
	}
	if got := strings.Join(habitIDs(view.State.Habits), ","); got != "g" {
		t.Fatalf("expected guest habits after sign out, got %s", got)
	}

	if err := docs.Merge(ctx, "alice", model.Document{Habits: []model.Habit{{ID: "Z"}}}); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := strings.Join(habitIDs(ctrl.Snapshot().State.Habits), ","); got != "g" {
		t.Fatalf("remote changes must not reach a signed-out controller, got %s", got)
	}
}

func TestSyncControllerAnalysisPrefs(t *testing.T) {
	ctrl := NewSyncController(store.NewMemoryLocal(), nil, testDefaults())

	// 偏好与加载阶段无关
	prefs := ctrl.SetAnalysisPrefs(model.AnalysisPrefs{HiddenHabitIDs: []string{"h2", " ", "h2"}, ShowStreaks: false})
	if len(prefs.HiddenHabitIDs) != 1 || prefs.HiddenHabitIDs[0] != "h2" {
		t.Fatalf("unexpected hidden ids: %v", prefs.HiddenHabitIDs)
	}

	local := store.NewMemoryLocal()
	ctrl = NewSyncController(local, nil, testDefaults())
	ctrl.SetAnalysisPrefs(model.AnalysisPrefs{HiddenHabitIDs: []string{"h1"}, ShowStreaks: false})
	if val, _, _ := local.Get(store.KeyShowStreaks); val != "false" {
		t.Fatalf("unexpected streak slot: %q", val)
	}

	reloaded := NewSyncController(local, nil, testDefaults())
	view := reloaded.Snapshot()
	if len(view.AnalysisPrefs.HiddenHabitIDs) != 1 || view.AnalysisPrefs.ShowStreaks {
		t.Fatalf("prefs should be restored from local storage: %+v", view.AnalysisPrefs)
	}
}

func TestSyncControllerResetData(t *testing.T) {
	ctrl, local := newGuestController(t)

	if _, _, err := ctrl.AddHabit("ジョギング"); err != nil {
		t.Fatalf("AddHabit returned error: %v", err)
	}
	if _, err := ctrl.ToggleHabit("2024-03-10", "h1"); err != nil {
		t.Fatalf("ToggleHabit returned error: %v", err)
	}
	if _, err := ctrl.UpdateSettings(model.SettingsPatch{BackgroundColor: strPtr("bg-rose-50")}); err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}

	if err := ctrl.ResetData(); err != nil {
		t.Fatalf("ResetData returned error: %v", err)
	}

	view := ctrl.Snapshot()
	if len(view.State.Habits) != 2 || len(view.State.Records) != 0 {
		t.Fatalf("unexpected state after reset: %+v", view.State)
	}
	if view.State.Settings.BackgroundColor != "bg-rose-50" {
		t.Fatal("settings should survive a data reset")
	}
	if val, _, _ := local.Get(store.KeyRecords); val != "{}" {
		t.Fatalf("records slot should be rewritten, got %q", val)
	}
}

func strPtr(s string) *string { return &s }
