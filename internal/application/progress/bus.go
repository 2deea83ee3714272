// Package progress 提供进程内进度事件总线
package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/pkg/logger"
	"z-novel-orchestrator/pkg/metrics"
)

// sinkDeliverTimeout 单次外部出口投递超时
const sinkDeliverTimeout = 5 * time.Second

// Sink 事件外部出口，每个出口由独立的投递协程驱动
// 典型实现为 Redis Stream 生产者
type Sink interface {
	Deliver(ctx context.Context, event *entity.ProgressEvent) error
}

// SinkFunc 函数式 Sink 适配器
type SinkFunc func(ctx context.Context, event *entity.ProgressEvent) error

// Deliver 实现 Sink
func (f SinkFunc) Deliver(ctx context.Context, event *entity.ProgressEvent) error {
	return f(ctx, event)
}

// subscriber 单个订阅者
type subscriber struct {
	id      int
	ch      chan *entity.ProgressEvent
	dropped atomic.Int64
}

// sinkWorker 外部出口的异步投递队列
// 出口阻塞或超时不影响发布方，队列满时丢弃并计数
type sinkWorker struct {
	sink Sink
	ch   chan *entity.ProgressEvent
	done chan struct{}
}

func (w *sinkWorker) run() {
	defer close(w.done)
	for event := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), sinkDeliverTimeout)
		if err := w.sink.Deliver(ctx, event); err != nil {
			logger.Default().Warn("progress sink delivery failed",
				"type", event.Type,
				"job_id", event.JobID,
				"error", err,
			)
		}
		cancel()
	}
}

// Bus 进程内进度事件总线
// 慢订阅者不阻塞发布方：缓冲满时丢弃事件并计数
type Bus struct {
	mu        sync.RWMutex
	subs      map[int]*subscriber
	nextID    int
	bufSize   int
	sinks     []*sinkWorker
	published atomic.Int64
	dropped   atomic.Int64
	closed    bool
}

// NewBus 创建事件总线
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{
		subs:    make(map[int]*subscriber),
		bufSize: bufSize,
	}
}

// AddSink 注册外部出口并启动其投递协程
func (b *Bus) AddSink(sink Sink) {
	w := &sinkWorker{
		sink: sink,
		ch:   make(chan *entity.ProgressEvent, b.bufSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.sinks = append(b.sinks, w)
	b.mu.Unlock()

	go w.run()
}

// Subscribe 订阅事件流，返回只读通道与取消函数
// 取消后通道关闭
func (b *Bus) Subscribe() (<-chan *entity.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan *entity.ProgressEvent)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		id: id,
		ch: make(chan *entity.ProgressEvent, b.bufSize),
	}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish 发布事件
// 本地分发与外部出口投递均为非阻塞，队列满时丢弃并计数
func (b *Bus) Publish(ctx context.Context, event *entity.ProgressEvent) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
			metrics.EventsDropped.WithLabelValues("local").Inc()
		}
	}
	for _, w := range b.sinks {
		select {
		case w.ch <- event:
		default:
			b.dropped.Add(1)
			metrics.EventsDropped.WithLabelValues("sink").Inc()
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
}

// Stats 总线统计信息
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// Stats 返回总线统计
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Subscribers: len(b.subs),
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}

// Close 关闭总线，断开全部订阅者并排空外部出口队列
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()

	for _, w := range sinks {
		close(w.ch)
		<-w.done
	}
}
