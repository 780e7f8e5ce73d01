package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ProfileYAML profiles.yaml 的顶层结构。
type ProfileYAML struct {
	Profiles map[string]ProfileEntry `yaml:"profiles"`
}

// ProfileEntry 一套策略档位：提示词覆盖、风控参数与循环间隔。
// 运行中通过 API 热更新，下个 tick 生效。
type ProfileEntry struct {
	Strategy        string  `yaml:"strategy,omitempty"`
	SystemPrompt    string  `yaml:"system_prompt,omitempty"`
	MaxRiskFraction float64 `yaml:"max_risk_fraction,omitempty"`
	StopLossPct     float64 `yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct   float64 `yaml:"take_profit_pct,omitempty"`
	IntervalSeconds int     `yaml:"interval_seconds,omitempty"`
	BuybackTrigger  float64 `yaml:"buyback_trigger,omitempty"`
	BurnPct         float64 `yaml:"burn_pct,omitempty"`
	Default         bool    `yaml:"default,omitempty"`
}

// ProfileWriter 负责 profiles.yaml 的读写，带备份与原子替换。
type ProfileWriter struct {
	path string
	mu   sync.RWMutex
}

func NewProfileWriter(path string) *ProfileWriter {
	return &ProfileWriter{path: path}
}

// Read 读取当前 profiles.yaml；文件不存在时返回空集合。
func (w *ProfileWriter) Read() (*ProfileYAML, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ProfileYAML{Profiles: make(map[string]ProfileEntry)}, nil
		}
		return nil, fmt.Errorf("读取 profiles.yaml 失败: %w", err)
	}

	var cfg ProfileYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 profiles.yaml 失败: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]ProfileEntry)
	}
	return &cfg, nil
}

// Write 先备份再写临时文件并原子替换。
func (w *ProfileWriter) Write(cfg *ProfileYAML) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.backup(); err != nil {
		return fmt.Errorf("备份失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化 profiles 失败: %w", err)
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("替换配置文件失败: %w", err)
	}
	return nil
}

func (w *ProfileWriter) backup() error {
	src, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	backupDir := filepath.Join(filepath.Dir(w.path), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(backupDir, fmt.Sprintf("profiles_%s.yaml", timestamp))

	dst, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	w.cleanOldBackups(backupDir, 10)
	return nil
}

func (w *ProfileWriter) cleanOldBackups(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "profiles_") && strings.HasSuffix(e.Name(), ".yaml") {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	if len(backups) <= keep {
		return
	}
	for i := 0; i < len(backups)-keep; i++ {
		os.Remove(backups[i])
	}
}

// GetProfile 按名称取单个档位。
func (w *ProfileWriter) GetProfile(name string) (*ProfileEntry, error) {
	cfg, err := w.Read()
	if err != nil {
		return nil, err
	}
	profile, ok := cfg.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' 不存在", name)
	}
	return &profile, nil
}

// UpdateProfile 更新或新建档位。
func (w *ProfileWriter) UpdateProfile(name string, profile ProfileEntry) error {
	cfg, err := w.Read()
	if err != nil {
		return err
	}
	cfg.Profiles[name] = profile
	return w.Write(cfg)
}

// DeleteProfile 删除档位；最后一个不允许删。
func (w *ProfileWriter) DeleteProfile(name string) error {
	cfg, err := w.Read()
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' 不存在", name)
	}
	if len(cfg.Profiles) <= 1 {
		return fmt.Errorf("不能删除唯一的 profile")
	}
	delete(cfg.Profiles, name)
	return w.Write(cfg)
}

// Path profiles.yaml 的路径。
func (w *ProfileWriter) Path() string {
	return w.path
}
