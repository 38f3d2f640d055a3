// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密钥、API key）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Insight InsightConfig `yaml:"insight"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// CORSOrigin 为空时不输出 CORS 头
	CORSOrigin string `yaml:"cors_origin"`
}

// StoreConfig 持久化后端配置
//
// driver 取值 mongo / sqlite / postgres。mongo 使用 uri+database，
// postgres 使用 url，sqlite 使用 path。
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	URL      string `yaml:"url"`
	Path     string `yaml:"path"`
}

type RedisConfig struct {
	// URL 为空时登出吊销退化为空操作
	URL string `yaml:"url"`
}

// InsightConfig AI 摘要配置
type InsightConfig struct {
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int           `yaml:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env        Environment
	APIPort    string
	CORSOrigin string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	DatabaseURL string
	SQLitePath  string

	RedisURL string

	JWTSecret      string
	TokenTTL       time.Duration
	IdentitySecret string

	OpenAIKey       string
	InsightModel    string
	InsightTimeout  time.Duration
	InsightMaxBytes int

	BootstrapAdminUsername string
	BootstrapAdminPassword string

	Logging LoggingConfig
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	cfg := &Config{
		Env:        env,
		APIPort:    getEnv("API_PORT", yamlCfg.Server.Port),
		CORSOrigin: getEnv("CORS_ORIGIN", yamlCfg.Server.CORSOrigin),

		StoreDriver: getEnv("STORE_DRIVER", yamlCfg.Store.Driver),
		MongoURI:    getEnv("MONGO_URI", yamlCfg.Store.URI),
		MongoDB:     getEnv("MONGO_DB", yamlCfg.Store.Database),
		DatabaseURL: getEnv("DATABASE_URL", yamlCfg.Store.URL),
		SQLitePath:  getEnv("SQLITE_PATH", yamlCfg.Store.Path),

		RedisURL: getEnv("REDIS_URL", yamlCfg.Redis.URL),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenTTL:       24 * time.Hour,
		IdentitySecret: getEnv("IDENTITY_SECRET", ""),

		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		InsightModel:    getEnv("OPENAI_MODEL", yamlCfg.Insight.Model),
		InsightTimeout:  yamlCfg.Insight.Timeout,
		InsightMaxBytes: yamlCfg.Insight.MaxBytes,

		BootstrapAdminUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),

		Logging: yamlCfg.Logging,
	}

	if ttl := getEnv("TOKEN_TTL", ""); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.TokenTTL = d
		}
	}

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server:  ServerConfig{Port: "8080"},
		Store:   StoreConfig{Driver: "sqlite", Path: "sheet-insights.db"},
		Insight: InsightConfig{Timeout: 30 * time.Second, MaxBytes: 12000},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏凭证）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Store: %s, Mongo: %s, DB: %s, Redis: %s}",
		c.Env, c.StoreDriver, maskPassword(c.MongoURI), maskPassword(c.DatabaseURL), c.RedisURL)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:/]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
