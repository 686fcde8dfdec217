// Package clock 抽象"当前时间"，生产代码注入 Real，测试注入 Fake。
package clock

import (
	"sync"
	"time"
)

// Clock 返回当前时刻。调度器与完成引擎只通过它读取时间。
type Clock interface {
	Now() time.Time
}

type realClock struct {
	loc *time.Location
}

// Real 返回读取系统时间并转换到 loc 的 Clock；loc 为 nil 时使用 time.Local。
func Real(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return realClock{loc: loc}
}

func (c realClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Fake 是可手动推进的时钟，并发安全。
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake 创建一个停在 start 的 Fake。
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 将时钟直接拨到 t。
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance 将时钟前进 d 并返回新的时刻。
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}
