package service

import (
	"context"
	"errors"
	"time"

	"github.com/nsxzhou1114/sighting-api/internal/dto"
	"github.com/nsxzhou1114/sighting-api/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationSpec 创建通知的参数
type NotificationSpec struct {
	RecipientID          string
	IsGlobal             bool
	Type                 model.NotificationType
	Title                string
	Message              string
	RelatedEntityID      string
	RelatedEntityType    model.RelatedEntityType
	Image                string
	RequiresConfirmation bool
	MatchData            *model.MatchData
}

// validate 校验通知不变量
func (s *NotificationSpec) validate() error {
	switch {
	case !s.Type.Valid():
		return validationError("无效的通知类型")
	case s.Title == "" || s.Message == "":
		return validationError("通知标题和内容不能为空")
	case s.IsGlobal && s.RecipientID != "":
		return validationError("全局通知不能指定接收人")
	case !s.IsGlobal && s.RecipientID == "":
		return validationError("通知缺少接收人")
	case !s.RelatedEntityType.Valid() || s.RelatedEntityID == "":
		return validationError("无效的关联实体")
	case s.RequiresConfirmation && (s.Type != model.NotificationMatchFound || s.MatchData == nil):
		return validationError("只有携带匹配数据的匹配通知需要确认")
	case !s.RequiresConfirmation && s.MatchData != nil:
		return validationError("匹配数据只能出现在待确认通知中")
	}
	return nil
}

// NotificationService 通知存储
type NotificationService struct {
	db              *gorm.DB
	records         RecordStore
	fanout          Fanout
	unread          UnreadCache
	logger          *zap.SugaredLogger
	defaultPageSize int
	maxPageSize     int
}

// NotificationOption 通知服务可选项
type NotificationOption func(*NotificationService)

// WithUnreadCache 设置未读数缓存
func WithUnreadCache(cache UnreadCache) NotificationOption {
	return func(s *NotificationService) {
		if cache != nil {
			s.unread = cache
		}
	}
}

// WithPageSize 设置默认与最大分页大小
func WithPageSize(defaultSize, maxSize int) NotificationOption {
	return func(s *NotificationService) {
		if defaultSize > 0 {
			s.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// NewNotificationService 创建通知服务实例
func NewNotificationService(db *gorm.DB, records RecordStore, fanout Fanout, logger *zap.SugaredLogger, opts ...NotificationOption) *NotificationService {
	if fanout == nil {
		fanout = NopFanout{}
	}
	s := &NotificationService{
		db:              db,
		records:         records,
		fanout:          fanout,
		unread:          NopUnreadCache{},
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 持久化通知并尽力推送给在线会话
func (s *NotificationService) Create(ctx context.Context, spec NotificationSpec) (*model.Notification, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	notification := &model.Notification{
		Type:                 spec.Type,
		Title:                spec.Title,
		Message:              spec.Message,
		RelatedEntityID:      spec.RelatedEntityID,
		RelatedEntityType:    spec.RelatedEntityType,
		IsGlobal:             spec.IsGlobal,
		RequiresConfirmation: spec.RequiresConfirmation,
	}
	if spec.RecipientID != "" {
		recipient := spec.RecipientID
		notification.RecipientID = &recipient
	}
	if spec.Image != "" {
		image := spec.Image
		notification.Image = &image
	}
	if spec.MatchData != nil {
		if err := notification.SetMatchData(*spec.MatchData); err != nil {
			return nil, internalError("序列化匹配数据失败", err)
		}
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, internalError("创建通知失败", err)
	}

	if notification.IsGlobal {
		s.unread.InvalidateAll(ctx)
		s.fanout.PushGlobal(notification)
	} else {
		s.unread.Invalidate(ctx, spec.RecipientID)
		s.fanout.PushToUser(spec.RecipientID, notification)
	}

	s.logger.Infow("通知创建成功",
		"notification_id", notification.ID,
		"type", notification.Type,
		"recipient", spec.RecipientID,
		"global", notification.IsGlobal)
	return notification, nil
}

// Get 按ID查询通知
func (s *NotificationService) Get(ctx context.Context, id string) (*model.Notification, error) {
	var notification model.Notification
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("通知不存在")
	}
	if err != nil {
		return nil, internalError("查询通知失败", err)
	}
	return &notification, nil
}

// visibleTo 用户自己的通知与全局通知
func (s *NotificationService) visibleTo(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("(recipient_id = ? OR is_global = ?)", userID, true)
}

// normalizePage 规范分页参数
func (s *NotificationService) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	return page, limit
}

// ListForUser 分页获取用户可见通知，按创建时间倒序
func (s *NotificationService) ListForUser(ctx context.Context, userID string, page, limit int) (*dto.NotificationListResponse, error) {
	page, limit = s.normalizePage(page, limit)

	var (
		total         int64
		notifications []model.Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.visibleTo(gctx, userID).Count(&total).Error
	})
	g.Go(func() error {
		return s.visibleTo(gctx, userID).
			Order("created_at DESC").Order("id DESC").
			Offset((page - 1) * limit).Limit(limit).
			Find(&notifications).Error
	})
	if err := g.Wait(); err != nil {
		return nil, internalError("查询通知列表失败", err)
	}

	resolved := make(map[string]*dto.RelatedEntityInfo)
	list := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		resp := toNotificationResponse(&notifications[i])
		resp.RelatedEntity = s.populate(ctx, &notifications[i], resolved)
		list = append(list, resp)
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return &dto.NotificationListResponse{
		Notifications: list,
		Pagination: dto.Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: pages,
		},
	}, nil
}

// populate 解析关联实体，解析失败时返回nil，不影响列表
func (s *NotificationService) populate(ctx context.Context, n *model.Notification, resolved map[string]*dto.RelatedEntityInfo) *dto.RelatedEntityInfo {
	if s.records == nil {
		return nil
	}
	key := string(n.RelatedEntityType) + ":" + n.RelatedEntityID
	if info, ok := resolved[key]; ok {
		return info
	}

	record, err := ResolveRelated(ctx, s.records, n.RelatedEntityType, n.RelatedEntityID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			s.logger.Warnf("解析通知关联实体失败: %s %v", key, err)
		}
		resolved[key] = nil
		return nil
	}

	info := &dto.RelatedEntityInfo{
		ID:     record.ID,
		Type:   string(record.Type),
		Name:   record.Name,
		Photos: record.Photos,
		Status: string(record.Status),
	}
	if info.Photos == nil {
		info.Photos = []string{}
	}
	resolved[key] = info
	return info
}

// toNotificationResponse 转换为通知响应格式
func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	resp := dto.NotificationResponse{
		ID:                   n.ID,
		Recipient:            n.RecipientID,
		Type:                 string(n.Type),
		Title:                n.Title,
		Message:              n.Message,
		RelatedEntityID:      n.RelatedEntityID,
		RelatedEntityType:    string(n.RelatedEntityType),
		Image:                n.Image,
		IsRead:               n.IsRead,
		IsGlobal:             n.IsGlobal,
		RequiresConfirmation: n.RequiresConfirmation,
		Confirmed:            n.Confirmed,
		CreatedAt:            n.CreatedAt,
	}
	if md, err := n.DecodeMatchData(); err == nil {
		resp.MatchData = md
	}
	return resp
}

// CountUnread 获取未读通知数量
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, version, ok := s.unread.Get(ctx, userID)
	if ok {
		return count, nil
	}

	if err := s.visibleTo(ctx, userID).Where("is_read = ?", false).Count(&count).Error; err != nil {
		return 0, internalError("获取未读通知数量失败", err)
	}

	s.unread.Set(ctx, version, count)
	return count, nil
}

// MarkRead 将用户可见的指定通知标记为已读，不可见的ID直接忽略
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) error {
	if ids == nil {
		return validationError("notificationIds 必须是数组")
	}
	if len(ids) == 0 {
		return nil
	}

	err := s.visibleTo(ctx, userID).
		Where("id IN ?", ids).
		Update("is_read", true).Error
	if err != nil {
		return internalError("标记通知已读失败", err)
	}

	// 列表中可能包含全局通知
	s.unread.InvalidateAll(ctx)
	return nil
}

// MarkAllRead 标记用户可见的全部通知为已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	err := s.visibleTo(ctx, userID).
		Where("is_read = ?", false).
		Update("is_read", true).Error
	if err != nil {
		return internalError("标记所有通知已读失败", err)
	}

	s.unread.InvalidateAll(ctx)
	return nil
}

// DeleteOwned 删除用户自己的通知，全局通知不能被单个用户删除
func (s *NotificationService) DeleteOwned(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, userID).
		Delete(&model.Notification{})
	if result.Error != nil {
		return internalError("删除通知失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError("通知不存在或无权限")
	}

	s.unread.Invalidate(ctx, userID)
	return nil
}

// Cleanup 清理过期的已读个人通知，待确认的匹配通知保留
func (s *NotificationService) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.WithContext(ctx).
		Where("is_read = ? AND is_global = ? AND updated_at < ?", true, false, cutoff).
		Where("(requires_confirmation = ? OR confirmed IS NOT NULL)", false).
		Delete(&model.Notification{})
	if result.Error != nil {
		return 0, internalError("清理已读通知失败", result.Error)
	}

	s.logger.Infof("清理了 %d 条过期的已读通知", result.RowsAffected)
	return result.RowsAffected, nil
}

// decide 原子地写入确认结果，仅当 confirmed 仍为空时生效
func (s *NotificationService) decide(ctx context.Context, id string, decision bool) (bool, error) {
	result := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND confirmed IS NULL", id).
		Updates(map[string]interface{}{
			"confirmed": decision,
			"is_read":   true,
		})
	if result.Error != nil {
		return false, internalError("保存确认结果失败", result.Error)
	}
	return result.RowsAffected == 1, nil
}
