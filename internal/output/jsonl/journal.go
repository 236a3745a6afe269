// Package jsonl 实现异步 JSONL 事件日志。
// 发布方只把事件投递到带缓冲的 channel，编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/model"
)

type opType int

const (
	opAppend opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	ev   model.Event
	done chan error
}

// Journal 事件日志，每行一个事件的 JSON 外层结构
type Journal struct {
	path   string
	logger *zap.Logger
	ch     chan op

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
	sendMu    sync.Mutex

	written atomic.Uint64
	failed  atomic.Uint64

	wg sync.WaitGroup
}

// Open 打开（追加）事件日志
// 参数 path: 输出文件路径，父目录不存在时自动创建
// 参数 bufferSize: 投递缓冲区大小，<=0 时为 1000
func Open(path string, bufferSize int, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开事件日志失败: %w", err)
	}

	j := &Journal{
		path:   path,
		logger: logger.Named("journal"),
		ch:     make(chan op, bufferSize),
	}
	j.wg.Add(1)
	go j.loop(f)
	return j, nil
}

// Path 输出文件路径
func (j *Journal) Path() string { return j.path }

// Attach 订阅总线上的指定事件种类；未指定时订阅信号、订单、成交
func (j *Journal) Attach(b *bus.Bus, kinds ...model.Kind) {
	if len(kinds) == 0 {
		kinds = []model.Kind{model.KindSignal, model.KindOrder, model.KindFill}
	}
	for _, k := range kinds {
		b.Subscribe(k, j.Append)
	}
}

// Append 异步追加一个事件
// 关闭后返回错误；缓冲区满时阻塞直到后台消费。
func (j *Journal) Append(ev model.Event) error {
	if j == nil {
		return fmt.Errorf("journal 为空")
	}
	if j.closed.Load() {
		return fmt.Errorf("journal 已关闭")
	}
	j.sendMu.Lock()
	defer j.sendMu.Unlock()
	if j.closed.Load() {
		return fmt.Errorf("journal 已关闭")
	}
	j.ch <- op{typ: opAppend, ev: ev}
	return nil
}

// Flush 等待已投递的事件全部写入文件
func (j *Journal) Flush() error {
	if j == nil || j.closed.Load() {
		return nil
	}
	j.sendMu.Lock()
	defer j.sendMu.Unlock()
	if j.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	j.ch <- op{typ: opFlush, done: done}
	return <-done
}

// Close 写完剩余事件并关闭文件，可重复调用
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		j.sendMu.Lock()
		defer j.sendMu.Unlock()
		done := make(chan error, 1)
		j.ch <- op{typ: opClose, done: done}
		j.closeErr = <-done
		close(j.ch)
	})
	j.wg.Wait()
	return j.closeErr
}

// Stats 返回已写入与编码/写入失败的事件数
func (j *Journal) Stats() (written, failed uint64) {
	return j.written.Load(), j.failed.Load()
}

func (j *Journal) loop(f *os.File) {
	defer j.wg.Done()

	bw := bufio.NewWriterSize(f, 64<<10)
	for req := range j.ch {
		switch req.typ {
		case opAppend:
			if err := j.encode(bw, req.ev); err != nil {
				j.failed.Add(1)
				j.logger.Warn("写入事件失败",
					zap.String("kind", req.ev.Kind().String()),
					zap.Error(err))
				continue
			}
			j.written.Add(1)
		case opFlush:
			req.done <- bw.Flush()
		case opClose:
			err := bw.Flush()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			req.done <- err
			return
		}
	}
}

func (j *Journal) encode(bw *bufio.Writer, ev model.Event) error {
	b, err := ev.MarshalJSON()
	if err != nil {
		return err
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

// ReadAll 读回事件日志，任何一行解码失败都返回带行号的错误
func ReadAll(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开事件日志失败: %w", err)
	}
	defer f.Close()

	var out []model.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		ev, err := model.DecodeEvent(sc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s 第 %d 行: %w", path, line, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取事件日志失败: %w", err)
	}
	return out, nil
}
