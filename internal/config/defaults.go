package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = "/data/logs/polycopy-live.log"

	// 默认跟单目标（Polymarket BTC/ETH 15 分钟盘口的高频账户）
	defaultCopyTarget        = "0x8c74b4eef9a894433B8126aA11d1345efb2B0488"
	defaultCopySizeUSD       = 0.50
	defaultCopyPollMS        = 500
	defaultCopyFetchLimit    = 5
	defaultCopyWarmupLimit   = 20
	defaultCopyCooldownSec   = 3600
	defaultCopyBackoffSec    = 2
	defaultCopyStatusSec     = 300
	defaultCopySeenCap       = 1000
	defaultRiskStartBalance  = 10.0
	defaultRiskMinBalance    = 8.0
	defaultRiskMaxDailyLoss  = 2.0
	defaultSourceBaseURL     = "https://data-api.polymarket.com"
	defaultSourceTimeoutSec  = 5
	defaultGammaBaseURL      = "https://gamma-api.polymarket.com"
	defaultGammaTimeoutSec   = 10
	defaultClobBaseURL       = "https://clob.polymarket.com"
	defaultClobTimeoutSec    = 10
	defaultClobMode          = "paper"
	defaultStorePath         = "/data/db/copylog.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Copy.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Source.applyDefaults(keys)
	c.Gamma.applyDefaults(keys)
	c.Clob.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (c *CopyConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("copy.target_address", &c.TargetAddress, defaultCopyTarget),
		fieldDefault{
			key:   "copy.size_usd",
			need:  func() bool { return c.SizeUSD <= 0 },
			apply: func() { c.SizeUSD = defaultCopySizeUSD },
		},
		fieldDefault{
			key:   "copy.poll_interval_ms",
			need:  func() bool { return c.PollIntervalMS <= 0 },
			apply: func() { c.PollIntervalMS = defaultCopyPollMS },
		},
		fieldDefault{
			key:   "copy.fetch_limit",
			need:  func() bool { return c.FetchLimit <= 0 },
			apply: func() { c.FetchLimit = defaultCopyFetchLimit },
		},
		fieldDefault{
			key:   "copy.warmup_limit",
			need:  func() bool { return c.WarmupLimit <= 0 },
			apply: func() { c.WarmupLimit = defaultCopyWarmupLimit },
		},
		fieldDefault{
			key:   "copy.cooldown_seconds",
			need:  func() bool { return c.CooldownSeconds <= 0 },
			apply: func() { c.CooldownSeconds = defaultCopyCooldownSec },
		},
		fieldDefault{
			key:   "copy.error_backoff_seconds",
			need:  func() bool { return c.ErrorBackoffSeconds <= 0 },
			apply: func() { c.ErrorBackoffSeconds = defaultCopyBackoffSec },
		},
		fieldDefault{
			key:   "copy.status_interval_seconds",
			need:  func() bool { return c.StatusIntervalSeconds <= 0 },
			apply: func() { c.StatusIntervalSeconds = defaultCopyStatusSec },
		},
		fieldDefault{
			key:   "copy.seen_cap",
			need:  func() bool { return c.SeenCap <= 0 },
			apply: func() { c.SeenCap = defaultCopySeenCap },
		},
	)
	if c.DelayMS < 0 {
		c.DelayMS = 0
	}
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.start_balance",
			need:  func() bool { return r.StartBalance <= 0 },
			apply: func() { r.StartBalance = defaultRiskStartBalance },
		},
		fieldDefault{
			key:   "risk.min_balance",
			need:  func() bool { return r.MinBalance <= 0 },
			apply: func() { r.MinBalance = defaultRiskMinBalance },
		},
		fieldDefault{
			key:   "risk.max_daily_loss",
			need:  func() bool { return r.MaxDailyLoss <= 0 },
			apply: func() { r.MaxDailyLoss = defaultRiskMaxDailyLoss },
		},
	)
}

func (s *SourceConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("source.base_url", &s.BaseURL, defaultSourceBaseURL),
		fieldDefault{
			key:   "source.timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultSourceTimeoutSec },
		},
	)
}

func (g *GammaConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("gamma.base_url", &g.BaseURL, defaultGammaBaseURL),
		fieldDefault{
			key:   "gamma.timeout_seconds",
			need:  func() bool { return g.TimeoutSeconds <= 0 },
			apply: func() { g.TimeoutSeconds = defaultGammaTimeoutSec },
		},
	)
}

func (cl *ClobConfig) applyDefaults(keys keySet) {
	if cl == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("clob.base_url", &cl.BaseURL, defaultClobBaseURL),
		stringFieldDefault("clob.mode", &cl.Mode, defaultClobMode),
		fieldDefault{
			key:   "clob.timeout_seconds",
			need:  func() bool { return cl.TimeoutSeconds <= 0 },
			apply: func() { cl.TimeoutSeconds = defaultClobTimeoutSec },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
