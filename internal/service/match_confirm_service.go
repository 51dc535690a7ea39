package service

import (
	"context"
	"fmt"

	"github.com/nsxzhou1114/sighting-api/internal/model"
	"go.uber.org/zap"
)

// MatchConfirmService 匹配确认：待确认 -> 已确认 | 已否认，两个终态都只能进入一次
type MatchConfirmService struct {
	notifications *NotificationService
	records       RecordStore
	logger        *zap.SugaredLogger
}

// NewMatchConfirmService 创建匹配确认服务
func NewMatchConfirmService(notifications *NotificationService, records RecordStore, logger *zap.SugaredLogger) *MatchConfirmService {
	return &MatchConfirmService{
		notifications: notifications,
		records:       records,
		logger:        logger,
	}
}

// ConfirmMatch 接收人对匹配通知做出确认或否认
// 确认后的状态更新与二次通知失败只记录日志，不影响确认结果
func (s *MatchConfirmService) ConfirmMatch(ctx context.Context, notificationID, callerID string, decision bool) (bool, error) {
	if notificationID == "" {
		return false, validationError("notificationId 不能为空")
	}

	notification, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return false, err
	}
	if !notification.OwnedBy(callerID) {
		return false, forbiddenError("无权处理该通知")
	}
	if notification.Type != model.NotificationMatchFound || !notification.RequiresConfirmation {
		return false, notFoundError("该通知不是待确认的匹配通知")
	}
	if !notification.Pending() {
		return false, ErrAlreadyDecided
	}

	applied, err := s.notifications.decide(ctx, notificationID, decision)
	if err != nil {
		return false, err
	}
	if !applied {
		// 并发请求已先一步写入
		return false, ErrAlreadyDecided
	}
	s.notifications.unread.Invalidate(ctx, callerID)

	s.logger.Infow("匹配通知已处理",
		"notification_id", notificationID,
		"caller", callerID,
		"confirmed", decision)

	if decision {
		s.cascade(context.WithoutCancel(ctx), notification)
	}
	return decision, nil
}

// cascade 确认后更新失踪人员状态并发送状态通知
func (s *MatchConfirmService) cascade(ctx context.Context, notification *model.Notification) {
	data, err := notification.DecodeMatchData()
	if err != nil || data.MissingPersonID == "" {
		s.logger.Errorf("匹配通知 %s 缺少失踪人员ID: %v", notification.ID, err)
		return
	}

	if err := s.records.MarkMissingPersonFound(ctx, data.MissingPersonID); err != nil {
		// 记录仍为 missing 时不发送“已找到”的通知
		s.logger.Errorf("更新失踪人员 %s 状态失败: %v", data.MissingPersonID, err)
		return
	}

	person, err := s.records.FindMissingPerson(ctx, data.MissingPersonID)
	if err != nil {
		s.logger.Errorf("查询失踪人员 %s 失败: %v", data.MissingPersonID, err)
		return
	}

	if person.ReporterID != "" {
		_, err := s.notifications.Create(ctx, NotificationSpec{
			RecipientID:       person.ReporterID,
			Type:              model.NotificationStatusUpdate,
			Title:             "失踪人员已找到",
			Message:           fmt.Sprintf("您登记的失踪人员「%s」已被确认找到", person.Name),
			RelatedEntityID:   person.ID,
			RelatedEntityType: model.RelatedMissingPerson,
			Image:             person.FirstPhoto(),
		})
		if err != nil {
			s.logger.Warnf("发送状态通知失败: %v", err)
		}
	} else {
		s.logger.Warnf("失踪人员 %s 没有登记人，跳过状态通知", person.ID)
	}

	_, err = s.notifications.Create(ctx, NotificationSpec{
		IsGlobal:          true,
		Type:              model.NotificationStatusUpdate,
		Title:             "好消息：失踪人员已找到",
		Message:           fmt.Sprintf("失踪人员「%s」已被找到，感谢大家的关注与帮助", person.Name),
		RelatedEntityID:   person.ID,
		RelatedEntityType: model.RelatedMissingPerson,
		Image:             person.FirstPhoto(),
	})
	if err != nil {
		s.logger.Warnf("发送全局状态通知失败: %v", err)
	}
}
