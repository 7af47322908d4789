// checkconn 是启动前的连通性自检：依次探测 data-api、gamma、CLOB 与
// Binance 行情端点，全部通过才返回 0。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adshao/go-binance/v2"

	brcfg "polycopy/internal/config"
	"polycopy/internal/gateway/clob"
	"polycopy/internal/gateway/dataapi"
	"polycopy/internal/gateway/gamma"
	"polycopy/internal/logger"
)

func main() {
	cfgPath := os.Getenv("POLYCOPY_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := brcfg.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取配置失败: %v\n", err)
		os.Exit(2)
	}
	logger.SetLevel("info")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	check := func(name string, fn func() error) {
		if err := fn(); err != nil {
			logger.Errorf("✗ %-10s %v", name, err)
			failed++
			return
		}
		logger.Infof("✓ %-10s ok", name)
	}

	check("data-api", func() error {
		client, err := dataapi.NewClient(cfg.Source)
		if err != nil {
			return err
		}
		trades, err := client.RecentTrades(ctx, cfg.Copy.TargetAddress, 1)
		if err != nil {
			return err
		}
		logger.Infof("  target %s has %d recent trade(s)", cfg.Copy.TargetAddress, len(trades))
		return nil
	})

	check("gamma", func() error {
		client, err := gamma.NewClient(cfg.Gamma)
		if err != nil {
			return err
		}
		info, err := client.MarketInfo(ctx, "BTC")
		if err != nil {
			return err
		}
		logger.Infof("  live market: %s (up=%.2f down=%.2f)", info.Slug, info.UpPrice, info.DownPrice)
		return nil
	})

	check("clob", func() error {
		client, err := clob.NewClient(cfg.Clob)
		if err != nil {
			return err
		}
		ts, err := client.ServerTime(ctx)
		if err != nil {
			return err
		}
		drift := time.Since(ts).Round(time.Second)
		logger.Infof("  server time %s (drift %s)", ts.UTC().Format(time.RFC3339), drift)
		return nil
	})

	// Binance 仅作行情参考源, 无需密钥
	check("binance", func() error {
		client := binance.NewClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		klines, err := client.NewKlinesService().Symbol("BTCUSDT").Interval("1m").Limit(1).Do(ctx)
		if err != nil {
			return err
		}
		if len(klines) > 0 {
			logger.Infof("  BTCUSDT last close %s", klines[0].Close)
		}
		return nil
	})

	if failed > 0 {
		logger.Errorf("connectivity check failed: %d/4", failed)
		os.Exit(1)
	}
	logger.Infof("all endpoints reachable")
}
