package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Copy.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Gamma.validate(); err != nil {
		return err
	}
	if err := c.Clob.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (c *CopyConfig) validate() error {
	if strings.TrimSpace(c.TargetAddress) == "" && strings.TrimSpace(c.WatchlistPath) == "" {
		return fmt.Errorf("copy.target_address or copy.watchlist_path is required")
	}
	if addr := strings.TrimSpace(c.TargetAddress); addr != "" {
		if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
			return fmt.Errorf("copy.target_address must be a 0x-prefixed 40-hex address, got %q", addr)
		}
	}
	if c.SizeUSD <= 0 {
		return fmt.Errorf("copy.size_usd must be > 0")
	}
	if c.PollIntervalMS < 100 {
		return fmt.Errorf("copy.poll_interval_ms must be >= 100")
	}
	if c.FetchLimit <= 0 || c.FetchLimit > 100 {
		return fmt.Errorf("copy.fetch_limit must be in [1,100]")
	}
	if c.SeenCap < 2 {
		return fmt.Errorf("copy.seen_cap must be >= 2")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.StartBalance <= 0 {
		return fmt.Errorf("risk.start_balance must be > 0")
	}
	if r.MinBalance < 0 {
		return fmt.Errorf("risk.min_balance must be >= 0")
	}
	if r.MaxDailyLoss <= 0 {
		return fmt.Errorf("risk.max_daily_loss must be > 0")
	}
	return nil
}

func (s *SourceConfig) validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("source.base_url cannot be empty")
	}
	return nil
}

func (g *GammaConfig) validate() error {
	if strings.TrimSpace(g.BaseURL) == "" {
		return fmt.Errorf("gamma.base_url cannot be empty")
	}
	return nil
}

func (cl *ClobConfig) validate() error {
	if strings.TrimSpace(cl.BaseURL) == "" {
		return fmt.Errorf("clob.base_url cannot be empty")
	}
	mode := strings.ToLower(strings.TrimSpace(cl.Mode))
	if mode != "paper" {
		return fmt.Errorf("clob.mode only supports 'paper', got %s", cl.Mode)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
