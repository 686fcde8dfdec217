package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	Port              string        `yaml:"port"`
	DatabasePath      string        `yaml:"database_path"`
	SessionSecret     string        `yaml:"session_secret"`
	GinMode           string        `yaml:"gin_mode"`
	Timezone          string        `yaml:"timezone"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ReminderTolerance time.Duration `yaml:"reminder_tolerance"`
	StoreTimeout      time.Duration `yaml:"store_timeout"`
	DeliveryTimeout   time.Duration `yaml:"delivery_timeout"`
	MessageTransport  string        `yaml:"message_transport"`
	SMTP              SMTPConfig    `yaml:"smtp"`
	TelegramToken     string        `yaml:"telegram_token"`
	SuperRootUserName string        `yaml:"super_root_user_name"`
	SuperRootPassword string        `yaml:"super_root_password"`
	SuperRootEmail    string        `yaml:"super_root_email"`
}

// SMTPConfig 描述邮件投递所需的 SMTP 参数。
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

const (
	// TransportLog 仅记录日志，不做真实投递。
	TransportLog = "log"
	// TransportSMTP 通过 SMTP 发送邮件。
	TransportSMTP = "smtp"
	// TransportTelegram 通过 Telegram Bot 推送。
	TransportTelegram = "telegram"
)

// Default 返回未读取任何外部来源时的默认配置。
func Default() AppConfig {
	return AppConfig{
		Port:              "8080",
		DatabasePath:      "beontime.db",
		SessionSecret:     "beontime-dev-secret",
		GinMode:           "release",
		Timezone:          "Local",
		PollInterval:      60 * time.Second,
		ReminderTolerance: 30 * time.Second,
		StoreTimeout:      5 * time.Second,
		DeliveryTimeout:   10 * time.Second,
		MessageTransport:  TransportLog,
		SMTP:              SMTPConfig{Port: "587"},
	}
}

// Load 依次应用默认值、CONFIG_FILE 指定的 YAML 文件与环境变量。
func Load() (AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return AppConfig{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// Validate 检查取值范围。
func (c AppConfig) Validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s, got %s", c.PollInterval)
	}
	if c.ReminderTolerance <= 0 {
		return fmt.Errorf("reminder tolerance must be positive, got %s", c.ReminderTolerance)
	}
	if c.StoreTimeout <= 0 || c.DeliveryTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	switch c.MessageTransport {
	case TransportLog, TransportSMTP, TransportTelegram:
	default:
		return fmt.Errorf("unsupported message transport %q", c.MessageTransport)
	}
	if c.MessageTransport == TransportSMTP && c.SMTP.Host == "" {
		return fmt.Errorf("smtp transport requires SMTP_HOST")
	}
	if c.MessageTransport == TransportTelegram && c.TelegramToken == "" {
		return fmt.Errorf("telegram transport requires TELEGRAM_TOKEN")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location 解析 Timezone，"Local" 或空值对应服务器本地时区。
func (c AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.DatabasePath, "DATABASE_PATH")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.GinMode, "GIN_MODE")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.MessageTransport, "MESSAGE_TRANSPORT")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.User, "SMTP_USER")
	setString(&cfg.SMTP.Password, "SMTP_PASS")
	setString(&cfg.SMTP.From, "SMTP_FROM")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.SuperRootUserName, "SUPER_ROOT_USER_NAME")
	setString(&cfg.SuperRootPassword, "SUPER_ROOT_PASSWORD")
	setString(&cfg.SuperRootEmail, "SUPER_ROOT_EMAIL")

	cfg.MessageTransport = strings.ToLower(cfg.MessageTransport)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"POLL_INTERVAL", &cfg.PollInterval},
		{"REMINDER_TOLERANCE", &cfg.ReminderTolerance},
		{"STORE_TIMEOUT", &cfg.StoreTimeout},
		{"DELIVERY_TIMEOUT", &cfg.DeliveryTimeout},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

// setDuration 接受 Go duration 字符串（"90s"）或纯秒数（"90"）。
func setDuration(dst *time.Duration, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
