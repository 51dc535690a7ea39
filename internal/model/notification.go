package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationMissingPersonCreated NotificationType = "MISSING_PERSON_CREATED"
	NotificationSightingCreated      NotificationType = "SIGHTING_CREATED"
	NotificationMatchFound           NotificationType = "MATCH_FOUND"
	NotificationStatusUpdate         NotificationType = "STATUS_UPDATE"
	NotificationSystem               NotificationType = "SYSTEM"
)

// Valid 是否为已知通知类型
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationMissingPersonCreated, NotificationSightingCreated,
		NotificationMatchFound, NotificationStatusUpdate, NotificationSystem:
		return true
	}
	return false
}

// RelatedEntityType 关联实体类型，决定 RelatedEntityID 的解析方式
type RelatedEntityType string

const (
	RelatedMissingPerson RelatedEntityType = "MissingPersonRecord"
	RelatedSighting      RelatedEntityType = "SightingRecord"
	RelatedUser          RelatedEntityType = "User"
)

// Valid 是否为已知关联类型
func (t RelatedEntityType) Valid() bool {
	switch t {
	case RelatedMissingPerson, RelatedSighting, RelatedUser:
		return true
	}
	return false
}

// MatchKind 候选记录对的类型组合
type MatchKind string

const (
	MatchMissingToMissing  MatchKind = "missing_to_missing"
	MatchMissingToSighting MatchKind = "missing_to_sighting"
	MatchSightingToMissing MatchKind = "sighting_to_missing"
)

// MatchData 匹配通知携带的候选记录，ID一律使用字符串
type MatchData struct {
	SourceRecordID  string    `json:"sourceRecordId"`
	MatchRecordID   string    `json:"matchRecordId"`
	MatchKind       MatchKind `json:"matchKind"`
	MissingPersonID string    `json:"missingPersonId"`
	SightingID      string    `json:"sightingId,omitempty"`
}

// Notification 通知模型
type Notification struct {
	ID                   string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	RecipientID          *string           `gorm:"type:varchar(36);index:idx_notification_recipient_created,priority:1" json:"recipient"`
	Type                 NotificationType  `gorm:"type:varchar(32);not null" json:"type"`
	Title                string            `gorm:"type:varchar(255);not null" json:"title"`
	Message              string            `gorm:"type:text;not null" json:"message"`
	RelatedEntityID      string            `gorm:"type:varchar(36);not null" json:"relatedEntityId"`
	RelatedEntityType    RelatedEntityType `gorm:"type:varchar(32);not null" json:"relatedEntityType"`
	Image                *string           `gorm:"type:varchar(512)" json:"image,omitempty"`
	IsRead               bool              `gorm:"not null;default:false" json:"isRead"`
	IsGlobal             bool              `gorm:"not null;default:false;index:idx_notification_global_created,priority:1" json:"isGlobal"`
	RequiresConfirmation bool              `gorm:"not null;default:false" json:"requiresConfirmation"`
	Confirmed            *bool             `json:"confirmed"`
	MatchData            datatypes.JSON    `json:"matchData,omitempty"`
	CreatedAt            time.Time         `gorm:"index:idx_notification_recipient_created,priority:2,sort:desc;index:idx_notification_global_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate 生成通知ID
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// ErrNoMatchData 通知不含匹配数据
var ErrNoMatchData = errors.New("通知不包含匹配数据")

// SetMatchData 写入匹配数据
func (n *Notification) SetMatchData(md MatchData) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	n.MatchData = datatypes.JSON(raw)
	return nil
}

// DecodeMatchData 读取匹配数据
func (n *Notification) DecodeMatchData() (*MatchData, error) {
	if len(n.MatchData) == 0 {
		return nil, ErrNoMatchData
	}
	var md MatchData
	if err := json.Unmarshal(n.MatchData, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// Pending 待确认：需要确认且尚未做出决定
func (n *Notification) Pending() bool {
	return n.RequiresConfirmation && n.Confirmed == nil
}

// OwnedBy 是否属于指定用户
func (n *Notification) OwnedBy(userID string) bool {
	return n.RecipientID != nil && *n.RecipientID == userID
}
