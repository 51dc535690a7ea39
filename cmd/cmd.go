package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/internal/config"
	"github.com/nsxzhou1114/sighting-api/internal/consumer"
	"github.com/nsxzhou1114/sighting-api/internal/controller"
	"github.com/nsxzhou1114/sighting-api/internal/database"
	"github.com/nsxzhou1114/sighting-api/internal/job"
	"github.com/nsxzhou1114/sighting-api/internal/logger"
	"github.com/nsxzhou1114/sighting-api/internal/middleware"
	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/nsxzhou1114/sighting-api/internal/router"
	"github.com/nsxzhou1114/sighting-api/internal/service"
	"github.com/nsxzhou1114/sighting-api/pkg/auth"
	"github.com/nsxzhou1114/sighting-api/pkg/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configPath string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "sighting-api",
	Short: "失踪人员匹配通知服务",
	Long:  `失踪人员平台的通知服务，负责匹配提醒、匹配确认与实时推送`,
}

// serveCmd 启动服务命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	Long:  `启动HTTP与WebSocket服务，按配置启动候选消息消费者与清理任务`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}

func init() {
	// 添加全局标志
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config", "配置文件路径")

	// 添加子命令
	rootCmd.AddCommand(serveCmd)
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// initializeSystem 初始化配置、日志与数据库
func initializeSystem() (*gorm.DB, error) {
	if err := config.Init(configPath); err != nil {
		return nil, fmt.Errorf("配置初始化失败: %w", err)
	}

	if err := logger.Init(&config.GlobalConfig.Log); err != nil {
		return nil, fmt.Errorf("日志初始化失败: %w", err)
	}

	db, err := database.InitMySQL(&config.GlobalConfig.MySQL)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// optionalRedis 未配置或连接失败时返回nil，依赖Redis的组件退回进程内实现
func optionalRedis(cfg *config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	client, err := database.InitRedis(cfg)
	if err != nil {
		logger.Warn("Redis不可用，未读缓存与令牌黑名单使用进程内实现", zap.Error(err))
		return nil
	}
	return client
}

// app 服务运行所需的组件
type app struct {
	engine    *gin.Engine
	manager   *websocket.Manager
	scheduler *job.Scheduler
	consumer  *consumer.MatchCandidateConsumer
}

// buildApp 组装服务组件
func buildApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.SugaredLogger) (*app, error) {
	realtime := cfg.Realtime
	manager, err := websocket.NewManager(websocket.Options{
		NodeID:          realtime.NodeID,
		ReadLimit:       realtime.ReadLimit,
		PongWait:        time.Duration(realtime.PongWaitSeconds) * time.Second,
		PingPeriod:      time.Duration(realtime.PingPeriodSeconds) * time.Second,
		WriteWait:       time.Duration(realtime.WriteWaitSeconds) * time.Second,
		SendBuffer:      realtime.SendBuffer,
		InactiveTimeout: time.Duration(realtime.InactiveTimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		return nil, err
	}

	opts := []service.NotificationOption{
		service.WithPageSize(cfg.Notification.DefaultPageSize, cfg.Notification.MaxPageSize),
	}
	if rdb != nil && cfg.Redis.UnreadTTLSeconds > 0 {
		opts = append(opts, service.WithUnreadCache(
			service.NewRedisUnreadCache(rdb, time.Duration(cfg.Redis.UnreadTTLSeconds)*time.Second)))
	}

	records := service.NewGormRecordStore(db)
	notifications := service.NewNotificationService(db, records, manager, log, opts...)
	alerts := service.NewMatchAlertService(notifications, records, log)
	confirms := service.NewMatchConfirmService(notifications, records, log)

	tokens := auth.NewTokenManager(&cfg.JWT, auth.NewBlacklist(auth.BlacklistType(cfg.JWT.Blacklist), rdb, log))

	r := gin.New()
	r.Use(middleware.Recovery(logger.GetLogger()))
	r.Use(logger.GinLogger())
	r.Use(middleware.Cors(cfg.App.Cors))
	router.Setup(r, router.Deps{
		Tokens:        tokens,
		TokenBuffer:   time.Duration(cfg.JWT.BufferSeconds) * time.Second,
		Notifications: controller.NewNotificationApi(notifications, alerts, confirms, log),
		WebSocket:     controller.NewWebSocketApi(manager, log),
		Auth:          controller.NewAuthApi(tokens, log),
	})

	scheduler := job.NewScheduler(log)
	if spec := cfg.Notification.CleanupCron; spec != "" {
		if err := scheduler.AddCleanup(spec, notifications, cfg.Notification.CleanupDays); err != nil {
			return nil, err
		}
	}

	a := &app{engine: r, manager: manager, scheduler: scheduler}
	if cfg.Broker.Enabled {
		a.consumer = consumer.NewMatchCandidateConsumer(cfg.Broker, alerts, log)
	}
	return a, nil
}

// startServer 启动HTTP服务
func startServer() error {
	db, err := initializeSystem()
	if err != nil {
		return fmt.Errorf("系统初始化失败: %w", err)
	}
	defer logger.Sync()

	cfg := config.GlobalConfig
	if err := model.InitTables(db); err != nil {
		return fmt.Errorf("初始化数据库表失败: %w", err)
	}

	config.Watch(func(next *config.Config) {
		logger.SetLevel(next.Log.Level)
		logger.Info("配置文件已更新", zap.String("log_level", next.Log.Level))
	})

	gin.SetMode(cfg.App.Mode)
	a, err := buildApp(cfg, db, optionalRedis(&cfg.Redis), logger.GetSugaredLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.manager.Start()
	a.scheduler.Start()
	if a.consumer != nil {
		go a.consumer.RunForever(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: a.engine,
	}

	// 优雅关闭
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	logger.Info("服务已启动", zap.String("addr", srv.Addr))

	select {
	case <-ctx.Done():
		logger.Info("关闭服务...")
	case err := <-serveErr:
		logger.Error("HTTP服务异常退出", zap.Error(err))
	}
	stop()

	// 设置关闭超时
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 实时连接已被劫持，Shutdown 不会关闭它们
	a.manager.Shutdown()
	a.scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务关闭异常: %w", err)
	}

	logger.Info("服务已关闭")
	return nil
}
