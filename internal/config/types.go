package config

import "strings"

// Config 是 polycopy 的主配置载体。
type Config struct {
	App    AppConfig    `toml:"app"`
	Copy   CopyConfig   `toml:"copy"`
	Risk   RiskConfig   `toml:"risk"`
	Source SourceConfig `toml:"source"`
	Gamma  GammaConfig  `toml:"gamma"`
	Clob   ClobConfig   `toml:"clob"`
	Store  StoreConfig  `toml:"store"`
	Notify NotifyConfig `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// CopyConfig 控制跟单循环：目标地址、单笔规模与轮询节奏。
type CopyConfig struct {
	TargetAddress         string  `toml:"target_address"`
	SizeUSD               float64 `toml:"size_usd"`
	PollIntervalMS        int     `toml:"poll_interval_ms"`
	DelayMS               int     `toml:"delay_ms"` // 下单前人为延迟，用于延迟对比实验
	FetchLimit            int     `toml:"fetch_limit"`
	WarmupLimit           int     `toml:"warmup_limit"`
	CooldownSeconds       int     `toml:"cooldown_seconds"`
	ErrorBackoffSeconds   int     `toml:"error_backoff_seconds"`
	StatusIntervalSeconds int     `toml:"status_interval_seconds"`
	SeenCap               int     `toml:"seen_cap"`
	WatchlistPath         string  `toml:"watchlist_path"` // 可选：多目标 watchlist 文件
}

// RiskConfig 定义资金闸门。金额单位为 USDC。
type RiskConfig struct {
	StartBalance float64 `toml:"start_balance"`
	MinBalance   float64 `toml:"min_balance"`
	MaxDailyLoss float64 `toml:"max_daily_loss"`
}

type SourceConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type GammaConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ClobConfig 描述执行端。mode 目前仅支持 "paper"（按订单簿模拟成交）。
type ClobConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Mode           string `toml:"mode"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
