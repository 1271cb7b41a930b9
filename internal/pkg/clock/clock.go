package clock

import "time"

// Clock 时间抽象，生产环境注入 Real()，测试注入 Fake()
type Clock interface {
	Now() time.Time
	// AfterFunc 在 d 之后调用 f，返回可取消的 Timer
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer 已调度的一次性回调
type Timer struct {
	stopFunc func() bool
}

// Stop 取消回调；已触发或已取消时返回 false
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real 基于标准库 time 的实现
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stopFunc: timer.Stop}
}
