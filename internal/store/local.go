package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// 本机存储的槽位键，每个槽位独立读写。
const (
	KeyRecords        = "habit_tracker_records"
	KeyHabits         = "habit_tracker_habits"
	KeyReadingLogs    = "habit_tracker_reading_logs"
	KeyAIAnalysis     = "habit_tracker_ai_analysis"
	KeyBgColor        = "habit_tracker_bg_color"
	KeyBgImage        = "habit_tracker_bg_image"
	KeyWorkLogs       = "habit_tracker_work_logs"
	KeyWorkTags       = "habit_tracker_work_tags"
	KeyHiddenAnalysis = "habit_tracker_hidden_analysis"
	KeyShowStreaks    = "habit_tracker_show_streaks"
)

// LocalStorage 是按设备隔离的字符串键值存储（访客模式）。
type LocalStorage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Erase(key string) error
}

// DiskLocal 基于 diskv 实现 LocalStorage，每个设备一个目录。
type DiskLocal struct {
	d        *diskv.Diskv
	basePath string
}

// OpenDiskLocal 在 root/devices/<deviceID> 下打开设备存储。
func OpenDiskLocal(root, deviceID string) (*DiskLocal, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, errors.New("store: device id required")
	}
	if strings.ContainsAny(deviceID, `/\`) || deviceID == "." || deviceID == ".." {
		return nil, fmt.Errorf("store: invalid device id %q", deviceID)
	}

	// 目录由 diskv 在首次写入时创建，只读访问不占用磁盘
	basePath := filepath.Join(root, "devices", deviceID)
	return &DiskLocal{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 256 * 1024,
		}),
		basePath: basePath,
	}, nil
}

// BasePath 返回设备目录。
func (l *DiskLocal) BasePath() string {
	return l.basePath
}

// Get 读取槽位，不存在时第二个返回值为 false。
func (l *DiskLocal) Get(key string) (string, bool, error) {
	if !l.d.Has(key) {
		return "", false, nil
	}
	val, err := l.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: read %s: %w", key, err)
	}
	return string(val), true, nil
}

// Set 整体覆盖槽位内容。
func (l *DiskLocal) Set(key, value string) error {
	if err := l.d.WriteString(key, value); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// Erase 删除槽位，不存在时不报错。
func (l *DiskLocal) Erase(key string) error {
	if !l.d.Has(key) {
		return nil
	}
	if err := l.d.Erase(key); err != nil {
		return fmt.Errorf("store: erase %s: %w", key, err)
	}
	return nil
}

// MemoryLocal 是纯内存的 LocalStorage，用于测试与临时会话。
type MemoryLocal struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryLocal 构造空的内存存储。
func NewMemoryLocal() *MemoryLocal {
	return &MemoryLocal{values: make(map[string]string)}
}

func (m *MemoryLocal) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryLocal) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryLocal) Erase(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
