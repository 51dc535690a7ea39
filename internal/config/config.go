package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	MySQL        DatabaseConfig     `mapstructure:"mysql"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Realtime     RealtimeConfig     `mapstructure:"realtime"`
	Notification NotificationConfig `mapstructure:"notification"`
	Broker       BrokerConfig       `mapstructure:"broker"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name string     `mapstructure:"name"`
	Mode string     `mapstructure:"mode"`
	Port int        `mapstructure:"port"`
	Cors CorsConfig `mapstructure:"cors"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey           string `mapstructure:"secret_key"`
	AccessExpireSeconds int    `mapstructure:"access_expire_seconds"`
	BufferSeconds       int    `mapstructure:"buffer_seconds"`
	Issuer              string `mapstructure:"issuer"`
	// Blacklist 令牌黑名单实现: memory | redis
	Blacklist string `mapstructure:"blacklist"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	// UnreadTTLSeconds 未读数缓存时间，0 表示关闭缓存
	UnreadTTLSeconds int `mapstructure:"unread_ttl_seconds"`
}

// Addr 获取Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// RealtimeConfig 实时推送配置
type RealtimeConfig struct {
	NodeID                 int64 `mapstructure:"node_id"`
	ReadLimit              int64 `mapstructure:"read_limit"`
	PongWaitSeconds        int   `mapstructure:"pong_wait_seconds"`
	PingPeriodSeconds      int   `mapstructure:"ping_period_seconds"`
	WriteWaitSeconds       int   `mapstructure:"write_wait_seconds"`
	SendBuffer             int   `mapstructure:"send_buffer"`
	InactiveTimeoutSeconds int   `mapstructure:"inactive_timeout_seconds"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`
	CleanupCron     string `mapstructure:"cleanup_cron"`
	CleanupDays     int    `mapstructure:"cleanup_days"`
}

// BrokerConfig 匹配候选消息队列配置
type BrokerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	Queue        string `mapstructure:"queue"`
	RoutingKey   string `mapstructure:"routing_key"`
	Workers      int    `mapstructure:"workers"`
	Prefetch     int    `mapstructure:"prefetch"`
	DialAttempts uint   `mapstructure:"dial_attempts"`
}

// CorsConfig 跨域配置
type CorsConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposedHeaders   []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
	// 配置Viper实例
	viperInstance *viper.Viper
)

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sighting-api")
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.port", 8080)
	v.SetDefault("jwt.access_expire_seconds", 7200)
	v.SetDefault("jwt.buffer_seconds", 300)
	v.SetDefault("jwt.blacklist", "memory")
	v.SetDefault("realtime.read_limit", 4096)
	v.SetDefault("realtime.pong_wait_seconds", 60)
	v.SetDefault("realtime.ping_period_seconds", 30)
	v.SetDefault("realtime.write_wait_seconds", 10)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.inactive_timeout_seconds", 300)
	v.SetDefault("notification.default_page_size", 20)
	v.SetDefault("notification.max_page_size", 100)
	v.SetDefault("notification.cleanup_cron", "0 0 3 * * *")
	v.SetDefault("notification.cleanup_days", 30)
	v.SetDefault("broker.exchange", "match.candidates")
	v.SetDefault("broker.queue", "sighting-api.match-candidates")
	v.SetDefault("broker.routing_key", "match.candidate.found")
	v.SetDefault("broker.workers", 4)
	v.SetDefault("broker.prefetch", 10)
	v.SetDefault("broker.dial_attempts", 5)
}

// Load 读取配置目录下的 config.yaml，环境变量优先
func Load(configPath string) (*Config, *viper.Viper, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &config, v, nil
}

// Init 初始化配置
func Init(configPath string) error {
	cfg, v, err := Load(configPath)
	if err != nil {
		return err
	}
	GlobalConfig = cfg
	viperInstance = v
	return nil
}

// Watch 监听配置文件变化，重新解析成功后回调
// 仅日志级别等可热更新的字段由回调应用，端口与连接参数需重启生效
func Watch(onChange func(*Config)) {
	if viperInstance == nil {
		return
	}
	v := viperInstance
	v.OnConfigChange(func(in fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()
}
