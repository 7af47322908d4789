// Package watchlist 管理可热更的跟单目标清单。
package watchlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"polycopy/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Target 描述单个被跟单的目标账户。
type Target struct {
	Address string `mapstructure:"address" yaml:"address"`
	Label   string `mapstructure:"label" yaml:"label"`
	Enabled *bool  `mapstructure:"enabled" yaml:"enabled"`
	// SizeUSD 覆盖全局单笔规模，0 表示沿用全局配置。
	SizeUSD float64 `mapstructure:"size_usd" yaml:"size_usd"`
	// Filter 是应用在原始交易事件上的 JSON Schema，留空表示全部放行。
	Filter map[string]interface{} `mapstructure:"filter" yaml:"filter"`

	filterCompiled *jsonschema.Schema
}

// IsEnabled 缺省视为启用。
func (t Target) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// HasFilter 报告该目标是否配置了事件过滤 schema。
func (t Target) HasFilter() bool {
	return t.filterCompiled != nil
}

// Allows 用目标的过滤 schema 校验一条原始事件。没有 schema 时放行。
func (t Target) Allows(event map[string]any) bool {
	if t.filterCompiled == nil {
		return true
	}
	return t.filterCompiled.Validate(event) == nil
}

// FileConfig 映射 targets 文件。
type FileConfig struct {
	Targets map[string]Target `mapstructure:"targets" yaml:"targets"`
}

// Snapshot 公开的目标清单快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Targets  map[string]Target
}

// Enabled 返回启用的目标，按地址排序保证遍历稳定。
func (s Snapshot) Enabled() []Target {
	out := make([]Target, 0, len(s.Targets))
	for _, t := range s.Targets {
		if t.IsEnabled() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// ChangeListener 在清单重载后触发。
type ChangeListener func(Snapshot)

// Registry 读取目标清单并监听文件更新。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取清单文件并开始监听变更。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("watchlist reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Snapshot 返回当前清单。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Target 按地址查找目标（大小写不敏感）。
func (r *Registry) Target(address string) (Target, bool) {
	addr := strings.ToLower(strings.TrimSpace(address))
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.snapshot.Targets[addr]
	return t, ok
}

func (r *Registry) reload() error {
	cfg, err := readWatchlistFile(r.path)
	if err != nil {
		return err
	}
	targets := make(map[string]Target, len(cfg.Targets))
	for name, t := range cfg.Targets {
		norm, err := normalizeTarget(name, t)
		if err != nil {
			return err
		}
		targets[norm.Address] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Targets:  targets,
	}
	r.mu.Unlock()
	logger.Infof("watchlist loaded %d targets from %s", len(targets), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("watchlist listener")
			cb(snap)
		}(fn)
	}
}

func normalizeTarget(name string, t Target) (Target, error) {
	t.Address = strings.ToLower(strings.TrimSpace(t.Address))
	if t.Address == "" {
		t.Address = strings.ToLower(strings.TrimSpace(name))
	}
	if !strings.HasPrefix(t.Address, "0x") || len(t.Address) != 42 {
		return Target{}, fmt.Errorf("invalid target address %q", t.Address)
	}
	t.Label = strings.TrimSpace(t.Label)
	if t.Label == "" {
		t.Label = strings.TrimSpace(name)
	}
	if len(t.Filter) > 0 {
		compiled, err := compileSchema(t.Filter)
		if err != nil {
			return Target{}, fmt.Errorf("filter schema compile failed for %s: %w", t.Address, err)
		}
		t.filterCompiled = compiled
	}
	return t, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Targets:  make(map[string]Target, len(src.Targets)),
	}
	for addr, t := range src.Targets {
		dst.Targets[addr] = t
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema(data map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readWatchlistFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read watchlist failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse watchlist failed: %w", err)
	}
	return cfg, nil
}
