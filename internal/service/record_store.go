package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nsxzhou1114/sighting-api/internal/model"
	"gorm.io/gorm"
)

// Record 记录库返回的统一视图
type Record struct {
	ID         string
	Type       model.RelatedEntityType
	Name       string
	Photos     []string
	Status     model.RecordStatus
	ReporterID string
}

// FirstPhoto 第一张照片，没有照片时为空
func (r *Record) FirstPhoto() string {
	if len(r.Photos) == 0 {
		return ""
	}
	return r.Photos[0]
}

// RecordStore 失踪人员与目击报告的外部记录库
// 记录不存在时返回 ErrRecordNotFound
type RecordStore interface {
	FindMissingPerson(ctx context.Context, id string) (*Record, error)
	FindSighting(ctx context.Context, id string) (*Record, error)
	FindUser(ctx context.Context, id string) (*Record, error)
	// MarkMissingPersonFound 将失踪人员状态置为 found，已是 found 时直接成功
	MarkMissingPersonFound(ctx context.Context, id string) error
}

// GormRecordStore 基于gorm的记录库实现
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore 创建记录库
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

func reporterOf(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func (s *GormRecordStore) first(ctx context.Context, dest interface{}, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// FindMissingPerson 查询失踪人员登记
func (s *GormRecordStore) FindMissingPerson(ctx context.Context, id string) (*Record, error) {
	var mp model.MissingPerson
	if err := s.first(ctx, &mp, id); err != nil {
		return nil, err
	}
	return &Record{
		ID:         mp.ID,
		Type:       model.RelatedMissingPerson,
		Name:       mp.Name,
		Photos:     mp.Photos,
		Status:     mp.Status,
		ReporterID: reporterOf(mp.ReportedBy),
	}, nil
}

// FindSighting 查询目击报告
func (s *GormRecordStore) FindSighting(ctx context.Context, id string) (*Record, error) {
	var sighting model.Sighting
	if err := s.first(ctx, &sighting, id); err != nil {
		return nil, err
	}
	return &Record{
		ID:         sighting.ID,
		Type:       model.RelatedSighting,
		Name:       sighting.DisplayName(),
		Photos:     sighting.Photos,
		Status:     sighting.Status,
		ReporterID: reporterOf(sighting.ReportedBy),
	}, nil
}

// FindUser 查询用户
func (s *GormRecordStore) FindUser(ctx context.Context, id string) (*Record, error) {
	var user model.User
	if err := s.first(ctx, &user, id); err != nil {
		return nil, err
	}
	name := user.Nickname
	if name == "" {
		name = user.Username
	}
	var photos []string
	if user.Avatar != "" {
		photos = []string{user.Avatar}
	}
	return &Record{
		ID:         user.ID,
		Type:       model.RelatedUser,
		Name:       name,
		Photos:     photos,
		ReporterID: user.ID,
	}, nil
}

// MarkMissingPersonFound 更新失踪人员状态为已找到
func (s *GormRecordStore) MarkMissingPersonFound(ctx context.Context, id string) error {
	var mp model.MissingPerson
	if err := s.first(ctx, &mp, id); err != nil {
		return err
	}
	if mp.Status == model.RecordStatusFound {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.MissingPerson{}).
		Where("id = ?", id).
		Update("status", model.RecordStatusFound).Error
	if err != nil {
		return fmt.Errorf("更新失踪人员状态失败: %w", err)
	}
	return nil
}

// ResolveRelated 按关联类型解析关联实体
func ResolveRelated(ctx context.Context, store RecordStore, entityType model.RelatedEntityType, id string) (*Record, error) {
	switch entityType {
	case model.RelatedMissingPerson:
		return store.FindMissingPerson(ctx, id)
	case model.RelatedSighting:
		return store.FindSighting(ctx, id)
	case model.RelatedUser:
		return store.FindUser(ctx, id)
	default:
		return nil, fmt.Errorf("未知的关联类型: %s", entityType)
	}
}
