package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/nsxzhou1114/sighting-api/internal/config"
	"github.com/spf13/cobra"
)

var (
	// 这些变量在编译时通过 -ldflags 设置
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var versionJSON bool

// buildInfo 版本与运行配置摘要
type buildInfo struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	Mode      string `json:"mode,omitempty"`
	Blacklist string `json:"blacklist,omitempty"`
	Broker    bool   `json:"broker"`
}

// versionCmd 版本信息命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Long:  `显示构建信息，配置文件可读时附带运行模式、令牌黑名单与候选消息消费者的配置`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := collectBuildInfo(configPath)
		return writeBuildInfo(cmd.OutOrStdout(), info, versionJSON)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "以JSON格式输出")
	rootCmd.AddCommand(versionCmd)
}

// collectBuildInfo 配置读取失败时只返回构建信息
func collectBuildInfo(path string) buildInfo {
	info := buildInfo{
		App:       rootCmd.Use,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	cfg, _, err := config.Load(path)
	if err != nil {
		return info
	}
	if cfg.App.Name != "" {
		info.App = cfg.App.Name
	}
	info.Mode = cfg.App.Mode
	info.Blacklist = cfg.JWT.Blacklist
	info.Broker = cfg.Broker.Enabled
	return info
}

func writeBuildInfo(w io.Writer, info buildInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(w, "%s %s\n", info.App, info.Version)
	fmt.Fprintf(w, "Git提交: %s\n", info.GitCommit)
	fmt.Fprintf(w, "构建时间: %s\n", info.BuildTime)
	fmt.Fprintf(w, "Go版本: %s (%s)\n", info.GoVersion, info.Platform)
	if info.Mode != "" {
		fmt.Fprintf(w, "运行模式: %s\n", info.Mode)
		fmt.Fprintf(w, "令牌黑名单: %s\n", info.Blacklist)
		fmt.Fprintf(w, "候选消息消费者: %t\n", info.Broker)
	}
	return nil
}
