package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 环境变量覆盖前缀, ROUTEPLAN_OUTPUT_DIR -> output_dir
const EnvPrefix = "ROUTEPLAN_"

// Config 运行配置: 输入输出、日志、邮箱、定时任务与推送
type Config struct {
	Email struct {
		Server        string   `koanf:"server"`                          // IMAP服务器地址(含端口)
		Username      string   `koanf:"username"`                        // 邮箱用户名
		Password      string   `koanf:"password"`                        // 邮箱密码/授权码
		TargetSubject string   `koanf:"target_subject"`                  // 需要匹配的邮件主题
		CheckInterval Duration `koanf:"check_interval" validate:"gte=0"` // 检查新邮件的间隔时间
	} `koanf:"email"`

	InputFile  string `koanf:"input_file" validate:"required"` // csv或xlsx
	SheetName  string `koanf:"sheet_name"`                     // xlsx输入时的工作表
	HeaderRow  int    `koanf:"header_row" validate:"gte=0"`    // xlsx标题行(从0开始)
	DataDir    string `koanf:"data_dir" validate:"required"`   // 邮件附件保存目录
	OutputDir  string `koanf:"output_dir" validate:"required"`
	LogName    string `koanf:"log_name" validate:"required"`
	LogMaxSize string `koanf:"log_max_size"`

	Export struct {
		MonthlyFile string `koanf:"monthly_file"`
		SummaryFile string `koanf:"summary_file"`
		FleetFile   string `koanf:"fleet_file"`
		Workbook    string `koanf:"workbook"` // 为空则不导出xlsx
		SQLitePath  string `koanf:"sqlite_path"`
	} `koanf:"export"`

	Schedule struct {
		Spec string `koanf:"spec" validate:"required"`
	} `koanf:"schedule"`

	Webhook struct {
		URL     string   `koanf:"url" validate:"omitempty,url"`
		Retries int      `koanf:"retries" validate:"gte=0"`
		Backoff Duration `koanf:"backoff" validate:"gte=0"`
	} `koanf:"webhook"`
}

// CostModel 成本模型的命名变体
type CostModel string

const (
	CostPerPassenger CostModel = "per_passenger"
	CostPerSeatMile  CostModel = "per_seat_mile"
)

// ScoreFormula 机会评分公式的命名变体
type ScoreFormula string

const (
	ScoreWeightedBlend ScoreFormula = "weighted_blend"
	ScoreGrowthBlend   ScoreFormula = "growth_blend"
)

// Costs 财务计算使用的不可变常量
type Costs struct {
	Model           CostModel `koanf:"model"`
	CASM            float64   `koanf:"casm"`
	CostPerPax      float64   `koanf:"cost_per_pax"`
	CostPerFlight   float64   `koanf:"cost_per_flight"`
	FlightsPerMonth float64   `koanf:"flights_per_month"`
}

// Scoring 机会评分公式及权重
type Scoring struct {
	Formula             ScoreFormula `koanf:"formula"`
	MarginWeight        float64      `koanf:"margin_weight"`
	PaxGrowthWeight     float64      `koanf:"pax_growth_weight"`
	CompetitionWeight   float64      `koanf:"competition_weight"`
	ProfitGrowthWeight  float64      `koanf:"profit_growth_weight"`
	RevenueGrowthWeight float64      `koanf:"revenue_growth_weight"`
}

// DataConfig 领域查找表与计算参数
type DataConfig struct {
	AircraftSize map[string]int    `koanf:"aircraftsize"` // 机型 -> 座位数
	RouteFleet   map[string]string `koanf:"routefleet"`   // 航线 -> 机型
	Costs        Costs             `koanf:"costs"`
	Scoring      Scoring           `koanf:"scoring"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig 只加载一次, 供命令行入口使用
func LoadConfig(folder, file, dataFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = Load(folder, file, dataFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load 读取两份配置文件并叠加环境变量. 文件不存在时使用默认值.
func Load(folder, file, dataFile string) (*Config, *DataConfig, error) {
	cfg := DefaultConfig()
	dcfg := DefaultDataConfig()

	// .env中的变量不覆盖已有环境变量
	if err := godotenv.Load(filepath.Join(folder, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("加载.env失败: %w", err)
	}

	var errs []error
	if err := loadInto(filepath.Join(folder, file), EnvPrefix, cfg); err != nil {
		errs = append(errs, fmt.Errorf("解析Config失败: %w", err))
	}
	if err := loadInto(filepath.Join(folder, dataFile), EnvPrefix+"DATA_", dcfg); err != nil {
		errs = append(errs, fmt.Errorf("解析DataConfig失败: %w", err))
	}
	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("配置校验失败: %w", err)
	}
	if err := dcfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

func loadInto(path, prefix string, out interface{}) error {
	k := koanf.New(".")

	content, err := readFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err == nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// ROUTEPLAN_EMAIL_SERVER -> email.server, ROUTEPLAN_OUTPUT_DIR -> output_dir
	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, prefix))
		parts := strings.SplitN(key, "_", 2)
		if len(parts) == 2 && isSection(parts[0]) {
			return parts[0] + "." + parts[1]
		}
		return key
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	return k.Unmarshal("", out)
}

func isSection(s string) bool {
	switch s {
	case "email", "export", "schedule", "webhook", "costs", "scoring":
		return true
	}
	return false
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func combineErrors(errs []error) error {
	return fmt.Errorf("配置加载遇到多个错误: %w", errors.Join(errs...))
}

// DefaultConfig 默认运行配置
func DefaultConfig() *Config {
	cfg := &Config{
		InputFile:  "route_monthly_performance.csv",
		SheetName:  "Sheet1",
		DataDir:    "data",
		OutputDir:  "output",
		LogName:    "app.log",
		LogMaxSize: "10 * 1024 * 1024",
	}
	cfg.Email.TargetSubject = "route performance"
	cfg.Email.CheckInterval = Duration(5 * time.Minute)
	cfg.Export.MonthlyFile = "route_monthly_enriched.csv"
	cfg.Export.SummaryFile = "route_summary.csv"
	cfg.Export.FleetFile = "fleet_summary.csv"
	cfg.Export.SQLitePath = "jetblue.db"
	cfg.Schedule.Spec = "@every 1h"
	cfg.Webhook.Retries = 5
	cfg.Webhook.Backoff = Duration(2 * time.Second)
	return cfg
}

// DefaultDataConfig 默认机队分配、座位配置与财务参数
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		AircraftSize: map[string]int{
			"A220":      140,
			"A320":      162,
			"A321":      200,
			"A321 Mint": 159, // 16 Mint + 143 economy
		},
		RouteFleet: map[string]string{
			"JFK-LAX": "A321 Mint",
			"JFK-SFO": "A321 Mint",
			"JFK-SAN": "A321 Mint",
			"BOS-SEA": "A321",
			"BOS-DEN": "A320",
			"BOS-MCO": "A320",
			"BOS-CHS": "A220",
			"FLL-AUS": "A220",
			"FLL-EWR": "A220",
			"JFK-AUS": "A320",
		},
		Costs: Costs{
			Model:           CostPerPassenger,
			CASM:            0.11,
			CostPerPax:      65,
			CostPerFlight:   18000,
			FlightsPerMonth: 30,
		},
		Scoring: Scoring{
			Formula:             ScoreWeightedBlend,
			MarginWeight:        0.4,
			PaxGrowthWeight:     0.4,
			CompetitionWeight:   0.2,
			ProfitGrowthWeight:  0.5,
			RevenueGrowthWeight: 0.5,
		},
	}
}

// Validate 校验查找表与命名变体
func (dc *DataConfig) Validate() error {
	var errs []error

	switch dc.Costs.Model {
	case CostPerPassenger, CostPerSeatMile:
	default:
		errs = append(errs, fmt.Errorf("unknown cost model %q", dc.Costs.Model))
	}
	if dc.Costs.CASM < 0 || dc.Costs.CostPerPax < 0 || dc.Costs.CostPerFlight < 0 || dc.Costs.FlightsPerMonth < 0 {
		errs = append(errs, errors.New("cost constants must be non-negative"))
	}

	s := dc.Scoring
	switch s.Formula {
	case ScoreWeightedBlend:
		if !sumsToOne(s.MarginWeight, s.PaxGrowthWeight, s.CompetitionWeight) {
			errs = append(errs, errors.New("weighted_blend weights must sum to 1"))
		}
	case ScoreGrowthBlend:
		if !sumsToOne(s.ProfitGrowthWeight, s.RevenueGrowthWeight) {
			errs = append(errs, errors.New("growth_blend weights must sum to 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown score formula %q", s.Formula))
	}

	for aircraft, seats := range dc.AircraftSize {
		if seats <= 0 {
			errs = append(errs, fmt.Errorf("aircraft %q: seats must be positive, got %d", aircraft, seats))
		}
	}
	for route, aircraft := range dc.RouteFleet {
		if _, ok := dc.AircraftSize[aircraft]; !ok {
			errs = append(errs, fmt.Errorf("route %s: aircraft %q has no seat configuration", route, aircraft))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("数据配置校验失败: %w", errors.Join(errs...))
	}
	return nil
}

func sumsToOne(ws ...float64) bool {
	var sum float64
	for _, w := range ws {
		sum += w
	}
	return math.Abs(sum-1) < 1e-9
}

// AircraftFor 航线 -> 机型, 未配置的航线返回 false
func (dc *DataConfig) AircraftFor(route string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := dc.RouteFleet[route]
	return a, ok
}

// SeatsFor 机型 -> 座位数
func (dc *DataConfig) SeatsFor(aircraft string) (int, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := dc.AircraftSize[aircraft]
	return s, ok
}

// SetRouteFleet 运行中调整航线机型
func (dc *DataConfig) SetRouteFleet(route, aircraft string) {
	mu.Lock()
	defer mu.Unlock()
	dc.RouteFleet[route] = aircraft
}

// Duration 是time.Duration的自定义包装类型
// 支持 "5m" 这样的字符串配置
type Duration time.Duration

// UnmarshalText 从字符串解析Duration
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
