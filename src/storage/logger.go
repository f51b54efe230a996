package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger 日志记录器，基于 logrus，附带文件重开、按大小轮转以及日志订阅
type Logger struct {
	*logrus.Logger

	filename    string
	file        *os.File      // 日志文件句柄，filename 为空时为 nil
	mu          sync.Mutex    // 互斥锁，保护 file 与 subscribers
	subscribers []chan string // 订阅者通道列表
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径，为空时输出到标准错误
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	l := &Logger{
		Logger:   logrus.New(),
		filename: filename,
	}
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.AddHook(&subscriberHook{logger: l})

	if filename == "" {
		l.SetOutput(os.Stderr)
		return l, nil
	}

	// 打开或创建日志文件，权限设置为0644
	file, err := openLogFile(filename)
	if err != nil {
		return nil, err
	}
	l.file = file
	l.SetOutput(file)
	return l, nil
}

// Filename 当前日志文件路径
func (l *Logger) Filename() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filename
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.SetOutput(os.Stderr)
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开一个文件(SIGHUP 时调用，配合外部 logrotate)
// 参数：
// filename：新文件的路径，为空时沿用当前路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if filename == "" {
		filename = l.filename
	}
	if filename == "" {
		return nil
	}

	// 重新打开
	file, err := openLogFile(filename)
	if err != nil {
		return err
	}
	l.SetOutput(file)

	// 关闭旧文件
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = file
	l.filename = filename
	return nil
}

// CheckRotate 日志文件超过 maxSize(如 "10 * 1024 * 1024")时轮转
// 返回值：是否发生了轮转
func (l *Logger) CheckRotate(maxSize string) (bool, error) {
	limit, err := ParseSize(maxSize)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return false, nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return false, fmt.Errorf("获取日志文件信息失败: %w", err)
	}
	if info.Size() <= limit {
		return false, nil
	}
	return true, l.rotateLog()
}

// rotateLog 调用方需持有 l.mu
func (l *Logger) rotateLog() error {
	_ = l.file.Close()

	ext := filepath.Ext(l.filename)
	rotated := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(l.filename, ext), time.Now().Format("20060102150405"), ext)
	if err := os.Rename(l.filename, rotated); err != nil {
		return fmt.Errorf("日志轮转重命名失败: %w", err)
	}

	file, err := openLogFile(l.filename)
	if err != nil {
		l.file = nil
		l.SetOutput(os.Stderr)
		return err
	}
	l.file = file
	l.SetOutput(file)
	return nil
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 创建带缓冲的通道(容量100)
	ch := make(chan string, 100)
	// 将新通道加入订阅者列表
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (l *Logger) Unsubscribe(sub <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ch := range l.subscribers {
		if ch == sub {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (l *Logger) publish(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 通知所有订阅者
	for _, ch := range l.subscribers {
		select {
		case ch <- entry: // 尝试发送日志条目
		default: // 如果通道已满则跳过
		}
	}
}

// subscriberHook 把格式化后的日志条目分发给订阅者
type subscriberHook struct {
	logger *Logger
}

func (h *subscriberHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *subscriberHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	h.logger.publish(strings.TrimRight(line, "\n"))
	return nil
}

// ParseSize 解析 "10 * 1024 * 1024" 形式的大小表达式
func ParseSize(expr string) (int64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, fmt.Errorf("日志大小表达式为空")
	}
	var result int64 = 1
	for _, part := range strings.Split(expr, "*") {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || num <= 0 {
			return 0, fmt.Errorf("无效的日志大小表达式 %q", expr)
		}
		result *= num
	}
	return result, nil
}

func openLogFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
	}
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return file, nil
}
