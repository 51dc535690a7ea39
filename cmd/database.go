package cmd

import (
	"fmt"

	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/spf13/cobra"
)

// databaseCmd 数据库管理命令
var databaseCmd = &cobra.Command{
	Use:   "db",
	Short: "数据库管理命令",
	Long:  `数据库管理相关的命令`,
}

// migrateCmd 初始化数据库表命令
// 示例：./sighting-api db migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "初始化数据库表",
	Long:  `创建或更新通知、失踪人员、目击报告与用户表`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := initializeSystem()
		if err != nil {
			return fmt.Errorf("系统初始化失败: %w", err)
		}

		if err := model.InitTables(db); err != nil {
			return fmt.Errorf("初始化数据库表失败: %w", err)
		}
		fmt.Println("数据库表初始化成功")
		return nil
	},
}

func init() {
	databaseCmd.AddCommand(migrateCmd)

	// 将数据库命令添加到根命令
	rootCmd.AddCommand(databaseCmd)
}
