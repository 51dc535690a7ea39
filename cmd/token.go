package cmd

import (
	"fmt"

	"github.com/nsxzhou1114/sighting-api/internal/config"
	"github.com/nsxzhou1114/sighting-api/pkg/auth"
	"github.com/spf13/cobra"
)

var (
	tokenUserID string
	tokenRole   string
)

// tokenCmd 令牌管理命令
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "令牌管理命令",
}

// issueTokenCmd 签发访问令牌，用于联调与运维
// 示例：./sighting-api token issue --user 6f1c... --role admin
var issueTokenCmd = &cobra.Command{
	Use:   "issue",
	Short: "签发访问令牌",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("配置初始化失败: %w", err)
		}

		tm := auth.NewTokenManager(&config.GlobalConfig.JWT, nil)
		token, claims, err := tm.GenerateAccessToken(tokenUserID, tokenRole)
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Printf("令牌ID: %s，过期时间: %s\n", claims.ID, claims.ExpiresAtTime().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&tokenUserID, "user", "", "用户ID")
	issueTokenCmd.Flags().StringVar(&tokenRole, "role", "user", "用户角色")
	_ = issueTokenCmd.MarkFlagRequired("user")

	tokenCmd.AddCommand(issueTokenCmd)
	rootCmd.AddCommand(tokenCmd)
}
