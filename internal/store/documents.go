package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrIdentityRequired 在未提供身份时返回。
var ErrIdentityRequired = errors.New("store: identity required")

// Snapshot 是远端文档在某一时刻的状态。Exists 为 false 表示文档尚未创建。
type Snapshot struct {
	Exists   bool
	Document model.Document
}

// DocumentStore 是按身份划分的远端单文档存储。
type DocumentStore interface {
	Get(ctx context.Context, uid string) (Snapshot, error)
	// Merge 只写入 doc 中存在的字段，其余远端字段保持不变。
	Merge(ctx context.Context, uid string, doc model.Document) error
	// Overwrite 用 doc 整体替换远端文档，缺失字段会被清空。
	Overwrite(ctx context.Context, uid string, doc model.Document) error
	// Subscribe 先推送当前快照，之后每次变更推送一次；ctx 结束后关闭通道。
	Subscribe(ctx context.Context, uid string) (<-chan Snapshot, error)
}

// GormDocuments 基于 gorm 的 DocumentStore，并在进程内向订阅者广播变更。
type GormDocuments struct {
	db *gorm.DB

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Snapshot
}

// NewGormDocuments 构造 GormDocuments。
func NewGormDocuments(gdb *gorm.DB) *GormDocuments {
	return &GormDocuments{db: gdb, subs: make(map[string]map[*subscriber]struct{})}
}

// Get 读取身份对应的文档。
func (s *GormDocuments) Get(ctx context.Context, uid string) (Snapshot, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Snapshot{}, ErrIdentityRequired
	}

	var row db.UserDocument
	if err := s.db.WithContext(ctx).Where("user_id = ?", uid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{Exists: false}, nil
		}
		return Snapshot{}, fmt.Errorf("get document: %w", err)
	}

	doc, err := decodeDocument(row)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode document: %w", err)
	}
	return Snapshot{Exists: true, Document: doc}, nil
}

// Merge 字段级合并写入，文档不存在时创建。
func (s *GormDocuments) Merge(ctx context.Context, uid string, doc model.Document) error {
	return s.write(ctx, uid, doc, false)
}

// Overwrite 整体替换文档内容。
func (s *GormDocuments) Overwrite(ctx context.Context, uid string, doc model.Document) error {
	return s.write(ctx, uid, doc, true)
}

func (s *GormDocuments) write(ctx context.Context, uid string, doc model.Document, replace bool) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return ErrIdentityRequired
	}

	columns, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	// 合并写入只能触碰文档中存在的字段，同时要先读出已有的 settings 以做子字段合并。
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !replace && doc.Settings != nil {
			var existing db.UserDocument
			err := tx.Where("user_id = ?", uid).First(&existing).Error
			switch {
			case err == nil:
				current, decodeErr := decodeSettings(existing.Settings)
				if decodeErr != nil {
					return decodeErr
				}
				merged := mergeSettingsPatch(current, doc.Settings)
				raw, marshalErr := json.Marshal(merged)
				if marshalErr != nil {
					return marshalErr
				}
				columns[db.ColumnSettings] = datatypes.JSON(raw)
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		if replace {
			for _, column := range allColumns {
				if _, ok := columns[column]; !ok {
					columns[column] = nil
				}
			}
		}

		row := db.UserDocument{UserID: uid}
		assignColumns(&row, columns)

		updates := make([]string, 0, len(columns)+1)
		for _, column := range allColumns {
			if _, ok := columns[column]; ok {
				updates = append(updates, column)
			}
		}
		updates = append(updates, "updated_at")

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	s.broadcast(ctx, uid)
	return nil
}

// Subscribe 订阅身份对应文档的变更。
func (s *GormDocuments) Subscribe(ctx context.Context, uid string) (<-chan Snapshot, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrIdentityRequired
	}

	initial, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{ch: make(chan Snapshot, 1)}
	sub.ch <- initial

	s.mu.Lock()
	if s.subs[uid] == nil {
		s.subs[uid] = make(map[*subscriber]struct{})
	}
	s.subs[uid][sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[uid], sub)
		if len(s.subs[uid]) == 0 {
			delete(s.subs, uid)
		}
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch, nil
}

// broadcast 重新读取文档并推送给所有订阅者。
// 通道只缓存最新一个快照，消费者来不及处理时旧快照被替换。
func (s *GormDocuments) broadcast(ctx context.Context, uid string) {
	s.mu.Lock()
	count := len(s.subs[uid])
	s.mu.Unlock()
	if count == 0 {
		return
	}

	snap, err := s.Get(context.WithoutCancel(ctx), uid)
	if err != nil {
		log.Printf("[STORE] reload document for %s failed: %v", uid, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[uid] {
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

var allColumns = []string{
	db.ColumnHabits,
	db.ColumnRecords,
	db.ColumnReadingLogs,
	db.ColumnWorkLogs,
	db.ColumnWorkTags,
	db.ColumnSettings,
}

func encodeDocument(doc model.Document) (map[string]datatypes.JSON, error) {
	columns := make(map[string]datatypes.JSON, len(allColumns))
	add := func(column string, present bool, value any) error {
		if !present {
			return nil
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%s: %w", column, err)
		}
		columns[column] = datatypes.JSON(raw)
		return nil
	}

	if err := add(db.ColumnHabits, doc.Habits != nil, doc.Habits); err != nil {
		return nil, err
	}
	if err := add(db.ColumnRecords, doc.Records != nil, doc.Records); err != nil {
		return nil, err
	}
	if err := add(db.ColumnReadingLogs, doc.ReadingLogs != nil, doc.ReadingLogs); err != nil {
		return nil, err
	}
	if err := add(db.ColumnWorkLogs, doc.WorkLogs != nil, doc.WorkLogs); err != nil {
		return nil, err
	}
	if err := add(db.ColumnWorkTags, doc.WorkTags != nil, doc.WorkTags); err != nil {
		return nil, err
	}
	if err := add(db.ColumnSettings, doc.Settings != nil, doc.Settings); err != nil {
		return nil, err
	}
	return columns, nil
}

func assignColumns(row *db.UserDocument, columns map[string]datatypes.JSON) {
	for column, value := range columns {
		switch column {
		case db.ColumnHabits:
			row.Habits = value
		case db.ColumnRecords:
			row.Records = value
		case db.ColumnReadingLogs:
			row.ReadingLogs = value
		case db.ColumnWorkLogs:
			row.WorkLogs = value
		case db.ColumnWorkTags:
			row.WorkTags = value
		case db.ColumnSettings:
			row.Settings = value
		}
	}
}

func decodeDocument(row db.UserDocument) (model.Document, error) {
	var doc model.Document
	if err := decodeColumn(row.Habits, &doc.Habits); err != nil {
		return doc, fmt.Errorf("habits: %w", err)
	}
	if err := decodeColumn(row.Records, &doc.Records); err != nil {
		return doc, fmt.Errorf("records: %w", err)
	}
	if err := decodeColumn(row.ReadingLogs, &doc.ReadingLogs); err != nil {
		return doc, fmt.Errorf("readingLogs: %w", err)
	}
	if err := decodeColumn(row.WorkLogs, &doc.WorkLogs); err != nil {
		return doc, fmt.Errorf("workLogs: %w", err)
	}
	if err := decodeColumn(row.WorkTags, &doc.WorkTags); err != nil {
		return doc, fmt.Errorf("workTags: %w", err)
	}
	settings, err := decodeSettings(row.Settings)
	if err != nil {
		return doc, err
	}
	doc.Settings = settings
	return doc, nil
}

func decodeColumn(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func decodeSettings(raw datatypes.JSON) (*model.SettingsPatch, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var patch model.SettingsPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return &patch, nil
}

func mergeSettingsPatch(current, incoming *model.SettingsPatch) *model.SettingsPatch {
	if current == nil {
		return incoming
	}
	merged := *current
	if incoming.BackgroundColor != nil {
		merged.BackgroundColor = incoming.BackgroundColor
	}
	if incoming.BackgroundImage != nil {
		merged.BackgroundImage = incoming.BackgroundImage
	}
	return &merged
}
