package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/config"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/datasource/file"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/report"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/storage"
)

const (
	configFile     = "config.json"
	dataConfigFile = "dataconfig.json"
)

// rootOptions 全局参数，命令行取值覆盖配置文件
type rootOptions struct {
	ConfigDir   string
	DataFile    string
	MinDuration float64
	MaxDuration float64
	LogFile     string
	Verbose     bool
}

// app 命令运行时共享的依赖
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "bikeshare",
		Short: "Bikeshare trip cleaning and analytics",
		Long: `Load a bikeshare trip export, clean it with a fixed set of rules and
produce the cleaning log, quality report and summary tables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "./config", "directory holding config.json and dataconfig.json")
	rootCmd.PersistentFlags().StringVarP(&opts.DataFile, "data", "d", "", "trip file (csv or xlsx), overrides data_file")
	rootCmd.PersistentFlags().Float64Var(&opts.MinDuration, "min-duration", 1, "minimum trip duration in minutes")
	rootCmd.PersistentFlags().Float64Var(&opts.MaxDuration, "max-duration", 1440, "maximum trip duration in minutes")
	rootCmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "log file, overrides log_name")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newCleanCmd(opts))
	rootCmd.AddCommand(newReportCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

// setup 加载配置、应用命令行覆盖项并初始化日志
func setup(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, dcfg, err := config.LoadConfig(opts.ConfigDir, configFile, dataConfigFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataFile = opts.DataFile
	}
	if flags.Changed("min-duration") {
		cfg.Cleaning.MinDurationMin = opts.MinDuration
	}
	if flags.Changed("max-duration") {
		cfg.Cleaning.MaxDurationMin = opts.MaxDuration
	}
	if flags.Changed("log-file") {
		cfg.LogName = opts.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("%w: 日志级别 %q", config.ErrInvalidConfig, cfg.LogLevel)
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return &app{cfg: cfg, dcfg: dcfg, logger: logger}, nil
}

func (a *app) close() {
	a.logger.Close()
}

// read 按配置的字符集/工作表读取行程文件
func (a *app) read(path string) (dataframe.DataFrame, error) {
	return file.ReadTrips(path, file.Options{
		Charset:   a.cfg.Charset,
		SheetName: a.cfg.SheetName,
	})
}

func (a *app) cleaner() *processor.Cleaner {
	return processor.NewCleaner(a.cfg.Options(a.dcfg), a.logger)
}

func (a *app) coordinates() report.CoordinateColumns {
	c := a.dcfg.GetCoordinates()
	return report.CoordinateColumns{
		StartLat: c.StartLat,
		StartLng: c.StartLng,
		EndLat:   c.EndLat,
		EndLng:   c.EndLng,
	}
}

// load 读取并清洗一次
func (a *app) load() (dataframe.DataFrame, *processor.Result, error) {
	raw, err := a.read(a.cfg.DataFile)
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	res, err := a.cleaner().Run(raw)
	if err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("清洗数据失败: %w", err)
	}
	return raw, res, nil
}

// exportPath 只有文件名时放到导出目录下
func (a *app) exportPath(name string) string {
	if filepath.Dir(name) == "." && a.cfg.ExportDir != "" {
		return filepath.Join(a.cfg.ExportDir, name)
	}
	return name
}
