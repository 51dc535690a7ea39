package cmd

import (
	"context"
	"fmt"

	"github.com/nsxzhou1114/sighting-api/internal/config"
	"github.com/nsxzhou1114/sighting-api/internal/job"
	"github.com/nsxzhou1114/sighting-api/internal/logger"
	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/nsxzhou1114/sighting-api/internal/service"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cleanupDays int

// notificationCmd 通知管理命令
var notificationCmd = &cobra.Command{
	Use:   "notification",
	Short: "通知管理命令",
}

// cleanupCmd 清理已读通知
// 示例：./sighting-api notification cleanup --days 30
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "清理过期的已读通知",
	Long:  `删除超过指定天数的已读个人通知，全局通知与待确认的匹配通知保留`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := initializeSystem()
		if err != nil {
			return fmt.Errorf("系统初始化失败: %w", err)
		}

		days := cleanupDays
		if days <= 0 {
			days = config.GlobalConfig.Notification.CleanupDays
		}
		log := logger.GetSugaredLogger()
		notifications := service.NewNotificationService(db, nil, nil, log)
		job.RunCleanup(cmd.Context(), notifications, days, log)
		return nil
	},
}

// statsCmd 通知统计
// 示例：./sighting-api notification stats
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "通知统计信息",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := initializeSystem()
		if err != nil {
			return fmt.Errorf("系统初始化失败: %w", err)
		}
		return showNotificationStats(cmd.Context(), db)
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "保留天数，默认使用配置")

	notificationCmd.AddCommand(cleanupCmd)
	notificationCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(notificationCmd)
}

// typeCount 按类型统计
type typeCount struct {
	Type  string
	Total int64
}

// showNotificationStats 显示通知统计信息
func showNotificationStats(ctx context.Context, db *gorm.DB) error {
	var byType []typeCount
	err := db.WithContext(ctx).Model(&model.Notification{}).
		Select("type, COUNT(*) AS total").
		Group("type").
		Scan(&byType).Error
	if err != nil {
		return fmt.Errorf("统计通知失败: %w", err)
	}

	var pending, confirmed, rejected int64
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&model.Notification{}).Where("requires_confirmation = ?", true)
	}
	if err := base().Where("confirmed IS NULL").Count(&pending).Error; err != nil {
		return fmt.Errorf("统计待确认匹配失败: %w", err)
	}
	if err := base().Where("confirmed = ?", true).Count(&confirmed).Error; err != nil {
		return fmt.Errorf("统计已确认匹配失败: %w", err)
	}
	if err := base().Where("confirmed = ?", false).Count(&rejected).Error; err != nil {
		return fmt.Errorf("统计已否认匹配失败: %w", err)
	}

	fmt.Println("📊 通知统计")
	for _, c := range byType {
		fmt.Printf("  %-24s %d\n", c.Type, c.Total)
	}
	fmt.Printf("匹配提醒: 待确认 %d，已确认 %d，已否认 %d\n", pending, confirmed, rejected)
	return nil
}
