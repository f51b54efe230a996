package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

// ErrInvalidConfig 配置取值不合法
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix 环境变量前缀，如 BIKESHARE_CLEANING_MAX_DURATION_MIN
const EnvPrefix = "BIKESHARE"

// Config 结构体定义了应用程序的运行配置
type Config struct {
	DataFile   string `mapstructure:"data_file"`    // 行程数据文件(csv/xlsx)
	Charset    string `mapstructure:"charset"`      // csv 字符集
	SheetName  string `mapstructure:"sheet_name"`   // xlsx 工作表
	ExportDir  string `mapstructure:"export_dir"`   // 清洗结果导出目录
	LogName    string `mapstructure:"log_name"`     // 日志文件，为空输出到标准错误
	LogLevel   string `mapstructure:"log_level"`    // debug/info/warn/error
	LogMaxSize string `mapstructure:"log_max_size"` // 如 "10 * 1024 * 1024"

	Cleaning struct {
		MinDurationMin float64 `mapstructure:"min_duration_min"` // 最短行程(分钟)
		MaxDurationMin float64 `mapstructure:"max_duration_min"` // 最长行程(分钟)
	} `mapstructure:"cleaning"`

	Server struct {
		Addr          string        `mapstructure:"addr"`           // 监听地址
		CacheSize     int           `mapstructure:"cache_size"`     // 会话缓存条目数
		SweepInterval time.Duration `mapstructure:"sweep_interval"` // 缓存巡检间隔
		RotateCheck   time.Duration `mapstructure:"rotate_check"`   // 日志轮转检查间隔
		CORSOrigins   []string      `mapstructure:"cors_origins"`
	} `mapstructure:"server"`
}

// DataConfig 数据集的列名词汇表
type DataConfig struct {
	Aliases        map[string][]string `mapstructure:"aliases"`         // 角色 -> 候选列名
	StationColumns []string            `mapstructure:"station_columns"` // 需要填充 "Missing" 的列
	GeoColumns     []string            `mapstructure:"geo_columns"`     // 地理完整性规则使用的列
	Coordinates    Coordinates         `mapstructure:"coordinates"`     // 计算骑行距离使用的列

	mu sync.RWMutex
}

// Coordinates 起终点坐标列名
type Coordinates struct {
	StartLat string `mapstructure:"start_lat"`
	StartLng string `mapstructure:"start_lng"`
	EndLat   string `mapstructure:"end_lat"`
	EndLng   string `mapstructure:"end_lng"`
}

// LoadConfig 并行加载运行配置与数据配置，文件不存在时使用默认值
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configFile, cfgChan, errChan)
	go parseDataConfig(dataConfigFile, dcfgChan, errChan)

	return waitForResults(cfgChan, dcfgChan, errChan)
}

func newViper(filePath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return v, nil
}

func setConfigDefaults(v *viper.Viper) {
	opts := processor.DefaultOptions()
	v.SetDefault("data_file", "data/trips.csv")
	v.SetDefault("charset", "utf-8")
	v.SetDefault("sheet_name", "")
	v.SetDefault("export_dir", "output")
	v.SetDefault("log_name", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_max_size", "10 * 1024 * 1024")
	v.SetDefault("cleaning.min_duration_min", opts.MinDurationMin)
	v.SetDefault("cleaning.max_duration_min", opts.MaxDurationMin)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cache_size", 4)
	v.SetDefault("server.sweep_interval", "1m")
	v.SetDefault("server.rotate_check", "1m")
	v.SetDefault("server.cors_origins", []string{"*"})
}

func setDataConfigDefaults(v *viper.Viper) {
	opts := processor.DefaultOptions()
	for role, aliases := range opts.Aliases {
		v.SetDefault("aliases."+string(role), aliases)
	}
	v.SetDefault("station_columns", opts.StationColumns)
	v.SetDefault("geo_columns", opts.GeoColumns)
	v.SetDefault("coordinates.start_lat", "start_lat")
	v.SetDefault("coordinates.start_lng", "start_lng")
	v.SetDefault("coordinates.end_lat", "end_lat")
	v.SetDefault("coordinates.end_lng", "end_lng")
}

func parseConfig(filePath string, resultChan chan<- *Config, errChan chan<- error) {
	v, err := newViper(filePath)
	if err != nil {
		errChan <- fmt.Errorf("读取配置文件失败: %w", err)
		return
	}
	setConfigDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(filePath string, resultChan chan<- *DataConfig, errChan chan<- error) {
	v, err := newViper(filePath)
	if err != nil {
		errChan <- fmt.Errorf("读取数据配置文件失败: %w", err)
		return
	}
	setDataConfigDefaults(v)

	var dcfg DataConfig
	if err := v.Unmarshal(&dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}

	// 使用固定格式字符串
	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s: %w", msg, errors.Join(errs...))
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	lo, hi := c.Cleaning.MinDurationMin, c.Cleaning.MaxDurationMin
	if lo < 0 {
		return fmt.Errorf("%w: 最短时长不能为负数(%v)", ErrInvalidConfig, lo)
	}
	if hi < lo {
		return fmt.Errorf("%w: 最长时长 %v 小于最短时长 %v", ErrInvalidConfig, hi, lo)
	}
	if c.Server.CacheSize <= 0 {
		return fmt.Errorf("%w: 缓存大小必须为正数", ErrInvalidConfig)
	}
	if c.Server.SweepInterval <= 0 {
		return fmt.Errorf("%w: 巡检间隔必须为正数", ErrInvalidConfig)
	}
	return nil
}

// Options 组合运行配置与数据配置，得到清洗参数
func (c *Config) Options(dc *DataConfig) processor.Options {
	opts := processor.DefaultOptions()
	opts.MinDurationMin = c.Cleaning.MinDurationMin
	opts.MaxDurationMin = c.Cleaning.MaxDurationMin
	if dc != nil {
		opts.Aliases = dc.AliasTable()
		opts.StationColumns = dc.GetStationColumns()
		opts.GeoColumns = dc.GetGeoColumns()
	}
	return opts
}

// AliasTable 以默认别名为底，叠加配置中的覆盖项
func (dc *DataConfig) AliasTable() processor.AliasTable {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	table := processor.DefaultAliases()
	for _, role := range processor.Roles {
		if aliases, ok := dc.Aliases[string(role)]; ok && len(aliases) > 0 {
			table[role] = append([]string(nil), aliases...)
		}
	}
	return table
}

func (dc *DataConfig) GetAliases(role processor.Role) []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return append([]string(nil), dc.Aliases[string(role)]...)
}

func (dc *DataConfig) SetAliases(role processor.Role, aliases []string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.Aliases == nil {
		dc.Aliases = make(map[string][]string)
	}
	dc.Aliases[string(role)] = append([]string(nil), aliases...)
}

func (dc *DataConfig) GetStationColumns() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return append([]string(nil), dc.StationColumns...)
}

func (dc *DataConfig) GetGeoColumns() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return append([]string(nil), dc.GeoColumns...)
}

func (dc *DataConfig) GetCoordinates() Coordinates {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.Coordinates
}
