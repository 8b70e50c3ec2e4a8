package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// lockFileName 数据目录锁文件名
const lockFileName = "hindsight.lock"

// DataLock 数据目录的进程级排他锁
// 归档文档与记录存储的双写没有事务保护，必须保证同一数据目录
// 只有一个写进程。锁文件内容为持有者 PID，持有者已退出的
// 残留锁视为失效并回收
type DataLock struct {
	path     string
	acquired bool
	logger   *slog.Logger
}

// NewDataLock 创建数据目录锁（不立即获取）
func NewDataLock(cfg *config.StorageConfig) *DataLock {
	return &DataLock{
		path:   filepath.Join(cfg.DataDir, lockFileName),
		logger: log.NewModuleLogger("store", "lock"),
	}
}

// Acquire 获取排他锁
// 已有存活进程持有时返回错误；残留的失效锁回收后重试一次
func (l *DataLock) Acquire() error {
	if l.acquired {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("acquire data lock: %w", err)
	}

	if err := l.tryCreate(); err == nil {
		l.acquired = true
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("acquire data lock: %w", err)
	}

	holder, err := l.holderPID()
	if err == nil && processAlive(holder) {
		return fmt.Errorf("data directory is locked by running process %d", holder)
	}

	// 持有者已不在，回收残留锁
	l.logger.Warn("回收失效的数据目录锁", "path", l.path, "stale_pid", holder)
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("acquire data lock: remove stale lock: %w", err)
	}
	if err := l.tryCreate(); err != nil {
		return fmt.Errorf("acquire data lock: %w", err)
	}

	l.acquired = true
	return nil
}

// Release 释放锁（幂等；只删除自己创建的锁文件）
func (l *DataLock) Release() {
	if !l.acquired {
		return
	}
	l.acquired = false

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Error("释放数据目录锁失败", "path", l.path, "error", err)
	}
}

// tryCreate 以排他方式创建锁文件并写入当前 PID
func (l *DataLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// holderPID 读取锁文件中的持有者 PID
func (l *DataLock) holderPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed lock file %s: %w", l.path, err)
	}
	return pid, nil
}

// processAlive 判断进程是否存活（信号 0 探测）
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
