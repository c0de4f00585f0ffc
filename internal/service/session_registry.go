package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/store"
)

// ErrDeviceRequired 在缺少设备 ID 时返回。
var ErrDeviceRequired = errors.New("device id required")

// LocalOpener 为设备打开本机存储。
type LocalOpener func(deviceID string) (store.LocalStorage, error)

// Sessions 按设备 ID 维护控制器，首次访问时创建并启动，长时间未访问的控制器会被回收。
// mu 只保护映射本身，打开存储与身份切换都在锁外进行。
type Sessions struct {
	mu        sync.Mutex
	remote    store.DocumentStore
	defaults  model.Defaults
	openLocal LocalOpener
	now       func() time.Time
	entries   map[string]*sessionEntry
}

type sessionEntry struct {
	ctrl     *SyncController
	lastUsed time.Time
}

// NewSessions 构造控制器注册表，每个设备的本机数据位于 dataDir/devices/<deviceID>。
func NewSessions(dataDir string, remote store.DocumentStore, defaults model.Defaults) *Sessions {
	return &Sessions{
		remote:   remote,
		defaults: defaults,
		openLocal: func(deviceID string) (store.LocalStorage, error) {
			return store.OpenDiskLocal(dataDir, deviceID)
		},
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// SetLocalOpener 替换本机存储的打开方式，主要用于测试。
func (s *Sessions) SetLocalOpener(open LocalOpener) {
	s.mu.Lock()
	s.openLocal = open
	s.mu.Unlock()
}

// SetClock 替换空闲计时使用的时间来源，主要用于测试。
func (s *Sessions) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Get 返回设备对应的控制器，并把会话身份同步给它。
// 身份与控制器当前身份不一致时触发一次身份切换。
func (s *Sessions) Get(ctx context.Context, deviceID, identity string) (*SyncController, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}
	identity = strings.TrimSpace(identity)

	if ctrl := s.touch(deviceID); ctrl != nil {
		return s.syncIdentity(ctx, ctrl, identity)
	}

	s.mu.Lock()
	open := s.openLocal
	s.mu.Unlock()

	local, err := open(deviceID)
	if err != nil {
		return nil, err
	}
	created := NewSyncController(local, s.remote, s.defaults)

	s.mu.Lock()
	if entry, ok := s.entries[deviceID]; ok {
		// 并发请求已先一步登记
		entry.lastUsed = s.now()
		ctrl := entry.ctrl
		s.mu.Unlock()
		return s.syncIdentity(ctx, ctrl, identity)
	}
	s.entries[deviceID] = &sessionEntry{ctrl: created, lastUsed: s.now()}
	s.mu.Unlock()

	if err := created.Start(ctx, identity); err != nil {
		s.mu.Lock()
		if entry, ok := s.entries[deviceID]; ok && entry.ctrl == created {
			delete(s.entries, deviceID)
		}
		s.mu.Unlock()
		created.Close()
		return nil, err
	}
	return created, nil
}

// Transient 返回一个不登记、不落盘的访客控制器，只包含默认数据。
// 用于尚未分配设备的只读请求。
func (s *Sessions) Transient(ctx context.Context) (*SyncController, error) {
	ctrl := NewSyncController(store.NewMemoryLocal(), nil, s.defaults)
	if err := ctrl.Start(ctx, ""); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func (s *Sessions) touch(deviceID string) *SyncController {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[deviceID]
	if !ok {
		return nil
	}
	entry.lastUsed = s.now()
	return entry.ctrl
}

func (s *Sessions) syncIdentity(ctx context.Context, ctrl *SyncController, identity string) (*SyncController, error) {
	if ctrl.Identity() != identity {
		if err := ctrl.OnIdentityChanged(ctx, identity); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

// EvictIdle 关闭超过 ttl 未被访问的控制器，返回回收的数量。
// 本机数据留在磁盘上，设备再次访问时重新加载。
func (s *Sessions) EvictIdle(ttl time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-ttl)
	idle := make([]*SyncController, 0)
	for id, entry := range s.entries {
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, entry.ctrl)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, ctrl := range idle {
		ctrl.Close()
	}
	return len(idle)
}

// RunJanitor 每隔 interval 回收一次空闲控制器，ctx 结束后返回。
func (s *Sessions) RunJanitor(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ttl); n > 0 {
				log.Printf("[SESSIONS] evicted %d idle controllers", n)
			}
		}
	}
}

// Len 返回已登记的控制器数量。
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close 断开所有远端订阅并等待在途写入完成。
func (s *Sessions) Close() {
	s.mu.Lock()
	controllers := make([]*SyncController, 0, len(s.entries))
	for id, entry := range s.entries {
		controllers = append(controllers, entry.ctrl)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, ctrl := range controllers {
		ctrl.Close()
	}
}
