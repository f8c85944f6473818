package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper" // 导入 Viper
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"` // `mapstructure` 标签用于Viper绑定结构体
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	AliyunOSS AliyunOSSConfig `mapstructure:"aliyun_oss"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Storage   StorageConfig   `mapstructure:"storage"`
	File      FileConfig      `mapstructure:"file"`
	Demo      DemoConfig      `mapstructure:"demo"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           string `mapstructure:"port"`
	Mode           string `mapstructure:"mode"`            // gin 模式: debug / release / test
	FrontendOrigin string `mapstructure:"frontend_origin"` // 允许跨域的前端地址
}

// DatabaseConfig 数据库配置
// Driver 为 sqlite 时 DSN 是数据库文件路径，为 mysql 时是标准 DSN
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	InitTimeout  time.Duration `mapstructure:"init_timeout"` // 启动时建库/迁移的超时时间
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
}

// RedisConfig Redis配置，Addr 为空时不启用限流
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	ExpiresIn time.Duration `mapstructure:"expires_in"` // 同时也是 session 行的有效期
	Issuer    string        `mapstructure:"issuer"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"` // local / minio / aliyun_oss
	LocalBasePath string `mapstructure:"local_base_path"`
}

// FileConfig 上传文件相关配置
type FileConfig struct {
	Retention time.Duration `mapstructure:"retention"` // 上传文件的保留时长
	MaxSize   int64         `mapstructure:"max_size"`  // 单个文件最大字节数
}

// DemoConfig 临时演示账号配置
type DemoConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Lifetime time.Duration `mapstructure:"lifetime"`
	SeedUser bool          `mapstructure:"seed_user"` // 是否创建一个永久的演示账号
}

// AdminConfig 领导账号(不可修改/删除的管理员)
type AdminConfig struct {
	LeaderEmail    string `mapstructure:"leader_email"`
	LeaderPassword string `mapstructure:"leader_password"`
}

type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// RateLimitConfig 每个客户端每分钟允许的请求数
type RateLimitConfig struct {
	LoginPerMinute    int `mapstructure:"login_per_minute"`
	DownloadPerMinute int `mapstructure:"download_per_minute"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

var AppConfig *Config // 全局应用配置实例

// DefaultJWTSecret 仅用于本地开发，release 模式下拒绝启动
const DefaultJWTSecret = "change-me-in-production"

// SetDefaults 设置默认值 (如果配置文件和环境变量中都没有，则使用这些默认值)
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.frontend_origin", "http://localhost:3000")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/fileshare.db")
	v.SetDefault("database.init_timeout", 30*time.Second)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("minio.endpoint", "minio:9000")
	v.SetDefault("minio.access_key_id", "minioadmin")
	v.SetDefault("minio.secret_access_key", "minioadmin")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "go-fileshare")
	v.SetDefault("aliyun_oss.bucket_name", "go-fileshare")
	v.SetDefault("jwt.secret_key", DefaultJWTSecret)
	v.SetDefault("jwt.expires_in", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "go-fileshare")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_base_path", "./uploads")
	v.SetDefault("file.retention", 7*24*time.Hour)
	v.SetDefault("file.max_size", int64(100<<20)) // 100MB
	v.SetDefault("demo.enabled", true)
	v.SetDefault("demo.lifetime", 30*time.Minute)
	v.SetDefault("demo.seed_user", false)
	v.SetDefault("admin.leader_email", "leader@fileshare.local")
	v.SetDefault("admin.leader_password", "")
	v.SetDefault("cleanup.interval", time.Hour)
	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.download_per_minute", 30)
	v.SetDefault("log.output_path", "logs/app.log")
	v.SetDefault("log.error_path", "logs/error.log")
	v.SetDefault("log.level", "info")
}

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	return load(viper.New(), true)
}

func load(v *viper.Viper, searchPaths bool) (*Config, error) {
	v.SetConfigName("config") // 配置文件名 (不带扩展名)
	v.SetConfigType("yaml")   // 配置文件类型
	if searchPaths {
		v.AddConfigPath(".")                   // 在当前目录查找配置文件
		v.AddConfigPath("./configs")           // 也可以添加其他路径，例如 ./configs/
		v.AddConfigPath("/etc/go-fileshare/")  // 生产环境常见路径
	}

	// 读取环境变量，例如 GO_FILESHARE_SERVER_PORT 对应 server.port
	v.SetEnvPrefix("GO_FILESHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// 配置文件存在但格式错误
			return nil, err
		}
		// 配置文件未找到不是致命错误，依赖环境变量和默认值
		log.Println("Warning: config file not found, using environment variables or default values.")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	log.Println("Configuration loaded successfully with Viper.")
	return cfg, nil
}

// Validate 检查启动所必需的配置项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return errors.New("database.driver must be sqlite or mysql")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.JWT.SecretKey == "" {
		return errors.New("jwt.secret_key is required")
	}
	if c.Server.Mode == "release" && c.JWT.SecretKey == DefaultJWTSecret {
		return errors.New("jwt.secret_key must be changed from the default in release mode")
	}
	switch c.Storage.Type {
	case "local", "minio", "aliyun_oss":
	default:
		return errors.New("storage.type must be local, minio or aliyun_oss")
	}
	if c.Admin.LeaderEmail == "" {
		return errors.New("admin.leader_email is required")
	}
	return nil
}
