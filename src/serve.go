package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/api"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/datasource/file"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/session"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/storage"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	Addr string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cleaned data and summaries over HTTP",
		Long: `Keep the cleaned dataset in a session cache and expose it as JSON.
The trip file is watched; any change invalidates the cache. SIGHUP reopens
the log file and purges the cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = opts.Addr
			}
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address, overrides server.addr")

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger := a.cfg, a.logger

	metrics, err := session.NewMetrics()
	if err != nil {
		return err
	}
	sess := session.New(cfg.DataFile, a.read, a.cleaner(), cfg.Server.CacheSize, metrics, logger)

	// 预加载失败不退出，文件就绪后由监控或下一次请求加载
	if _, err := sess.Current(); err != nil {
		logger.WithError(err).Warn("预加载数据失败")
	}

	baseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor, err := file.NewFileMonitor(cfg.DataFile)
	if err != nil {
		return err
	}
	defer monitor.Close()
	go func() {
		err := monitor.Watch(baseCtx, func(path string) {
			n := sess.Invalidate(path)
			logger.WithFields(logrus.Fields{"path": path, "entries": n}).Info("数据文件已变化")
		})
		if err != nil {
			logger.WithError(err).Error("文件监控异常退出")
		}
	}()

	c, err := newScheduler(cfg.Server.SweepInterval, cfg.Server.RotateCheck, cfg.LogMaxSize, sess, logger)
	if err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Options{
			Session:     sess,
			Metrics:     metrics,
			Logger:      logger,
			Coordinates: a.coordinates(),
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		// 关闭时取消请求上下文，结束日志流等长连接
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{
		"addr": cfg.Server.Addr,
		"data": cfg.DataFile,
	}).Info("服务已启动，按Ctrl+C退出")

	return waitForShutdown(baseCtx, cancel, srv, sess, logger, serveErr)
}

// newScheduler 定时巡检缓存；配置了日志文件时按大小检查轮转
func newScheduler(sweep, rotate time.Duration, maxSize string, sess *session.Session, logger *storage.Logger) (*cron.Cron, error) {
	c := cron.New()

	err := c.AddFunc(fmt.Sprintf("@every %s", sweep), func() {
		sess.Sweep()
	})
	if err != nil {
		return nil, fmt.Errorf("创建巡检任务失败: %w", err)
	}

	if logger.Filename() == "" || rotate <= 0 {
		return c, nil
	}
	err = c.AddFunc(fmt.Sprintf("@every %s", rotate), func() {
		rotated, err := logger.CheckRotate(maxSize)
		if err != nil {
			logger.WithError(err).Error("日志轮转失败")
			return
		}
		if rotated {
			logger.Info("日志已轮转")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("创建日志轮转任务失败: %w", err)
	}
	return c, nil
}

// waitForShutdown 等待退出信号；SIGHUP 重新打开日志并清空缓存
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *http.Server, sess *session.Session, logger *storage.Logger, serveErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("HTTP 服务异常退出: %w", err)
		case <-ctx.Done():
			return shutdown(srv, cancel, logger)
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if err := logger.Reopen(""); err != nil {
					logger.WithError(err).Error("重新打开日志失败")
				}
				sess.Purge()
				logger.Info("收到 SIGHUP，日志已重新打开，缓存已清空")
				continue
			}
			logger.Info("Received signal: " + sig.String() + ", shutting down...")
			return shutdown(srv, cancel, logger)
		}
	}
}

func shutdown(srv *http.Server, cancel context.CancelFunc, logger *storage.Logger) error {
	cancel()
	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭 HTTP 服务失败: %w", err)
	}
	logger.Info("服务已关闭")
	return nil
}
