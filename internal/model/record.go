package model

// RecordStatus 记录状态
type RecordStatus string

const (
	RecordStatusMissing RecordStatus = "missing"
	RecordStatusActive  RecordStatus = "active"
	RecordStatusFound   RecordStatus = "found"
	RecordStatusClosed  RecordStatus = "closed"
)

// User 用户模型，认证与资料维护由外部系统负责
type User struct {
	Base
	Username string `gorm:"type:varchar(64);uniqueIndex" json:"username"`
	Nickname string `gorm:"type:varchar(64)" json:"nickname"`
	Avatar   string `gorm:"type:varchar(512)" json:"avatar"`
	Role     string `gorm:"type:varchar(16);not null;default:user" json:"role"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// MissingPerson 失踪人员登记
type MissingPerson struct {
	Base
	Name       string       `gorm:"type:varchar(128);not null" json:"name"`
	Photos     []string     `gorm:"type:text;serializer:json" json:"photos"`
	Status     RecordStatus `gorm:"type:varchar(16);not null;default:missing;index" json:"status"`
	ReportedBy *string      `gorm:"type:varchar(36);index" json:"reportedBy"`
}

// TableName 指定表名
func (MissingPerson) TableName() string {
	return "missing_persons"
}

// Sighting 目击报告
type Sighting struct {
	Base
	Name       string       `gorm:"type:varchar(128)" json:"name"`
	Location   string       `gorm:"type:varchar(255)" json:"location"`
	Photos     []string     `gorm:"type:text;serializer:json" json:"photos"`
	Status     RecordStatus `gorm:"type:varchar(16);not null;default:active;index" json:"status"`
	ReportedBy *string      `gorm:"type:varchar(36);index" json:"reportedBy"`
}

// TableName 指定表名
func (Sighting) TableName() string {
	return "sightings"
}

// DisplayName 目击报告没有姓名时使用地点
func (s *Sighting) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Location
}
