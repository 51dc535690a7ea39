package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 内存sqlite，单连接保证所有查询看到同一个库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.InitTables(db))
	return db
}

// recordingFanout 记录推送
type recordingFanout struct {
	mu     sync.Mutex
	users  map[string][]*model.Notification
	global []*model.Notification
}

func newRecordingFanout() *recordingFanout {
	return &recordingFanout{users: make(map[string][]*model.Notification)}
}

func (f *recordingFanout) PushToUser(userID string, n *model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = append(f.users[userID], n)
}

func (f *recordingFanout) PushGlobal(n *model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global = append(f.global, n)
}

func (f *recordingFanout) userPushes(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users[userID])
}

func (f *recordingFanout) globalPushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.global)
}

// failingRecordStore 状态更新总是失败
type failingRecordStore struct {
	RecordStore
}

func (failingRecordStore) MarkMissingPersonFound(context.Context, string) error {
	return errors.New("record store unavailable")
}

type fixture struct {
	db            *gorm.DB
	records       *GormRecordStore
	fanout        *recordingFanout
	notifications *NotificationService
	alerts        *MatchAlertService
	confirms      *MatchConfirmService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	records := NewGormRecordStore(db)
	fanout := newRecordingFanout()
	log := zap.NewNop().Sugar()
	notifications := NewNotificationService(db, records, fanout, log)
	return &fixture{
		db:            db,
		records:       records,
		fanout:        fanout,
		notifications: notifications,
		alerts:        NewMatchAlertService(notifications, records, log),
		confirms:      NewMatchConfirmService(notifications, records, log),
	}
}

func strPtr(s string) *string {
	return &s
}

func (f *fixture) user(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.User{Base: model.Base{ID: id}, Username: id, Nickname: "nick-" + id}).Error)
}

func (f *fixture) missingPerson(t *testing.T, id, name string, reporter *string) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.MissingPerson{
		Base:       model.Base{ID: id},
		Name:       name,
		Photos:     []string{"https://photos.example/" + id + ".jpg"},
		Status:     model.RecordStatusMissing,
		ReportedBy: reporter,
	}).Error)
}

func (f *fixture) sighting(t *testing.T, id, location string, reporter *string) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.Sighting{
		Base:       model.Base{ID: id},
		Location:   location,
		Photos:     []string{"https://photos.example/" + id + ".jpg"},
		Status:     model.RecordStatusActive,
		ReportedBy: reporter,
	}).Error)
}

func (f *fixture) count(t *testing.T, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Notification{}).Where(query, args...).Count(&n).Error)
	return n
}

func (f *fixture) only(t *testing.T, query string, args ...interface{}) *model.Notification {
	t.Helper()
	var list []model.Notification
	require.NoError(t, f.db.Where(query, args...).Find(&list).Error)
	require.Len(t, list, 1)
	return &list[0]
}
