package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Game    GameConfig    `mapstructure:"game"`
	Store   StoreConfig   `mapstructure:"store"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig 玩家令牌配置
type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// GameConfig 游戏规则参数
type GameConfig struct {
	NightDuration time.Duration `mapstructure:"night_duration"`
	DayDuration   time.Duration `mapstructure:"day_duration"`
	BotGrace      time.Duration `mapstructure:"bot_grace"`
	MaxPlayers    int           `mapstructure:"max_players"`
	AutoResolve   bool          `mapstructure:"auto_resolve"`
	Seed          int64         `mapstructure:"seed"`
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	Driver              string        `mapstructure:"driver"`
	RedisURL            string        `mapstructure:"redis_url"`
	FirebaseURL         string        `mapstructure:"firebase_url"`
	FirebaseCredentials string        `mapstructure:"firebase_credentials"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	TTL                 time.Duration `mapstructure:"ttl"`
}

// ArchiveConfig 战绩归档配置
type ArchiveConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.secret", DefaultSecret)
	v.SetDefault("auth.ttl", 24*time.Hour)

	v.SetDefault("game.night_duration", 45*time.Second)
	v.SetDefault("game.day_duration", 60*time.Second)
	v.SetDefault("game.bot_grace", time.Second)
	v.SetDefault("game.max_players", 20)
	v.SetDefault("game.auto_resolve", true)
	v.SetDefault("game.seed", 0)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.firebase_url", "")
	v.SetDefault("store.firebase_credentials", "")
	v.SetDefault("store.poll_interval", time.Second)
	v.SetDefault("store.ttl", 24*time.Hour)

	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load 加载配置：.env -> config.yaml -> MAFIA_* 环境变量
// paths 为 config.yaml 的搜索目录，为空时使用当前目录
func Load(paths ...string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("MAFIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultSecret 仅用于开发模式的令牌密钥
const DefaultSecret = "change-me"

// Validate 校验配置
func (c *Config) Validate() error {
	if !c.Log.Development && (c.Auth.Secret == "" || c.Auth.Secret == DefaultSecret) {
		return errors.New("auth.secret 未设置，非开发模式下不能使用默认密钥")
	}
	if c.Game.MaxPlayers < 1 {
		return fmt.Errorf("game.max_players 必须大于0: %d", c.Game.MaxPlayers)
	}
	if c.Game.NightDuration <= 0 || c.Game.DayDuration <= 0 {
		return errors.New("阶段时长必须大于0")
	}
	if c.Game.BotGrace < 0 {
		return errors.New("game.bot_grace 不能为负数")
	}
	switch c.Store.Driver {
	case "memory", "redis", "firebase":
	default:
		return fmt.Errorf("未知的存储类型: %s", c.Store.Driver)
	}
	switch c.Archive.Driver {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("未知的归档类型: %s", c.Archive.Driver)
	}
	return nil
}
