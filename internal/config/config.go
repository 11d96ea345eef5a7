// Package config 负责进程启动阶段的配置装载：JSON 配置文件加默认值，
// 远端凭证以环境变量覆盖，并据此选择本地或远端执行模式。
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// 远端服务的环境变量约定。设置了 PAYCLAW_API_URL 即进入远端模式。
const (
	EnvAPIURL = "PAYCLAW_API_URL"
	EnvAPIKey = "PAYCLAW_API_KEY"
)

// Mode 表示账本的执行模式。
type Mode string

const (
	// ModeLocal 使用进程内账本，余额与 Intent 记录由本进程持有。
	ModeLocal Mode = "local"
	// ModeRemote 把账本操作委托给远端策略与账本服务。
	ModeRemote Mode = "remote"
)

// Config 描述 payclawd 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Remote  RemoteConfig  `json:"remote"`
	Policy  PolicyConfig  `json:"policy"`
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
}

// ServerConfig 控制 API 服务的监听地址。
type ServerConfig struct {
	Address string `json:"address"`
}

// RemoteConfig 描述远端策略与账本服务的端点与凭证。
// 环境变量 PAYCLAW_API_URL / PAYCLAW_API_KEY 优先于文件内容。
type RemoteConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// PolicyConfig 指向本地账本的 YAML 策略文件，为空时使用内置默认策略。
type PolicyConfig struct {
	Path string `json:"path"`
}

// LoggingConfig 映射到 pkg/logger 的配置。
type LoggingConfig struct {
	Level   string      `json:"level"`
	Format  string      `json:"format"`
	Outputs []string    `json:"outputs"`
	Audit   AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志输出。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// MetricsConfig 控制独立指标服务的监听地址，为空时不单独启动。
type MetricsConfig struct {
	Address string `json:"address"`
}

// Load 解析指定路径的 JSON 配置文件。文件不存在时退回默认配置，
// 环境变量覆盖始终生效，保证纯环境变量的部署方式可用。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		file, err := os.Open(path)
		switch {
		case os.IsNotExist(err):
			// 没有配置文件时按默认值运行。
		case err != nil:
			return nil, fmt.Errorf("打开配置文件失败: %w", err)
		default:
			defer file.Close()
			content, err := io.ReadAll(file)
			if err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
			if err := json.Unmarshal(content, cfg); err != nil {
				return nil, fmt.Errorf("解析配置失败: %w", err)
			}
			cfg.resolvePaths(filepath.Dir(path))
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Mode 根据远端端点是否配置选择执行模式，其余逻辑不感知差异。
func (c *Config) Mode() Mode {
	if strings.TrimSpace(c.Remote.BaseURL) != "" {
		return ModeRemote
	}
	return ModeLocal
}

// applyEnv 应用环境变量覆盖。
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.Remote.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.Remote.APIKey = v
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// resolvePaths 把配置文件中的相对路径折算到配置文件所在目录。
func (c *Config) resolvePaths(baseDir string) {
	if c.Policy.Path != "" && !filepath.IsAbs(c.Policy.Path) {
		c.Policy.Path = filepath.Join(baseDir, c.Policy.Path)
	}
	if c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}
}
