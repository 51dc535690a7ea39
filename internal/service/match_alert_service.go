package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nsxzhou1114/sighting-api/internal/model"
	"go.uber.org/zap"
)

// MatchAlertService 匹配提醒分发：判定候选记录的角色与接收人，生成待确认的匹配通知
type MatchAlertService struct {
	notifications *NotificationService
	records       RecordStore
	logger        *zap.SugaredLogger
}

// NewMatchAlertService 创建匹配提醒服务
func NewMatchAlertService(notifications *NotificationService, records RecordStore, logger *zap.SugaredLogger) *MatchAlertService {
	return &MatchAlertService{
		notifications: notifications,
		records:       records,
		logger:        logger,
	}
}

// matchRoles 角色判定结果
type matchRoles struct {
	kind        model.MatchKind
	source      *Record
	match       *Record
	recipientID string
	relatedType model.RelatedEntityType
	data        model.MatchData
}

// lookup 查询记录，不存在时返回 nil 而不是错误
func lookup(ctx context.Context, find func(context.Context, string) (*Record, error), id string) (*Record, error) {
	record, err := find(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// resolveRoles 按顺序判定候选记录对的类型组合，先命中者生效
func (s *MatchAlertService) resolveRoles(ctx context.Context, sourceID, matchID string) (*matchRoles, error) {
	sourceMissing, err := lookup(ctx, s.records.FindMissingPerson, sourceID)
	if err != nil {
		return nil, internalError("查询失踪人员记录失败", err)
	}
	matchMissing, err := lookup(ctx, s.records.FindMissingPerson, matchID)
	if err != nil {
		return nil, internalError("查询失踪人员记录失败", err)
	}

	data := model.MatchData{SourceRecordID: sourceID, MatchRecordID: matchID}

	if sourceMissing != nil && matchMissing != nil {
		data.MatchKind = model.MatchMissingToMissing
		data.MissingPersonID = sourceID
		return &matchRoles{
			kind:        data.MatchKind,
			source:      sourceMissing,
			match:       matchMissing,
			recipientID: matchMissing.ReporterID,
			relatedType: model.RelatedMissingPerson,
			data:        data,
		}, nil
	}

	if sourceMissing != nil {
		sighting, err := lookup(ctx, s.records.FindSighting, matchID)
		if err != nil {
			return nil, internalError("查询目击报告失败", err)
		}
		if sighting != nil {
			data.MatchKind = model.MatchMissingToSighting
			data.MissingPersonID = sourceID
			data.SightingID = matchID
			return &matchRoles{
				kind:        data.MatchKind,
				source:      sourceMissing,
				match:       sighting,
				recipientID: sighting.ReporterID,
				relatedType: model.RelatedMissingPerson,
				data:        data,
			}, nil
		}
	}

	if matchMissing != nil {
		sighting, err := lookup(ctx, s.records.FindSighting, sourceID)
		if err != nil {
			return nil, internalError("查询目击报告失败", err)
		}
		if sighting != nil {
			data.MatchKind = model.MatchSightingToMissing
			data.MissingPersonID = matchID
			data.SightingID = sourceID
			return &matchRoles{
				kind:        data.MatchKind,
				source:      sighting,
				match:       matchMissing,
				recipientID: matchMissing.ReporterID,
				relatedType: model.RelatedSighting,
				data:        data,
			}, nil
		}
	}

	return nil, notFoundError("未找到匹配的记录组合")
}

// alertText 生成通知标题与内容
func alertText(roles *matchRoles) (string, string) {
	switch roles.kind {
	case model.MatchMissingToMissing:
		return "发现可能的重复登记", fmt.Sprintf("失踪人员「%s」可能与您登记的「%s」是同一人，请确认", roles.source.Name, roles.match.Name)
	case model.MatchMissingToSighting:
		return "发现可能的匹配", fmt.Sprintf("您提交的目击报告可能与失踪人员「%s」相符，请确认", roles.source.Name)
	default:
		return "发现可能的目击线索", fmt.Sprintf("有一条目击报告可能与您登记的失踪人员「%s」相符，请确认", roles.match.Name)
	}
}

// SendMatchAlert 为候选记录对生成一条待确认的匹配通知
// callerID 为空表示系统调用（例如匹配服务回调），此时不做自我提醒检查
func (s *MatchAlertService) SendMatchAlert(ctx context.Context, callerID, sourceID, matchID string) error {
	if sourceID == "" || matchID == "" {
		return validationError("missingPersonId 和 matchId 不能为空")
	}
	if sourceID == matchID {
		return validationError("不能将记录与自身匹配")
	}

	roles, err := s.resolveRoles(ctx, sourceID, matchID)
	if err != nil {
		return err
	}
	if roles.recipientID == "" {
		return notFoundError("未找到提醒接收人")
	}
	if callerID != "" && roles.recipientID == callerID {
		return ErrSelfAlert
	}

	title, message := alertText(roles)
	data := roles.data
	notification, err := s.notifications.Create(ctx, NotificationSpec{
		RecipientID:          roles.recipientID,
		Type:                 model.NotificationMatchFound,
		Title:                title,
		Message:              message,
		RelatedEntityID:      sourceID,
		RelatedEntityType:    roles.relatedType,
		Image:                roles.source.FirstPhoto(),
		RequiresConfirmation: true,
		MatchData:            &data,
	})
	if err != nil {
		return err
	}

	s.logger.Infow("匹配提醒已发送",
		"notification_id", notification.ID,
		"kind", roles.kind,
		"source", sourceID,
		"match", matchID,
		"recipient", roles.recipientID,
		"caller", callerID)
	return nil
}
