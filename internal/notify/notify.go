// Package notify carries transient user-facing notices from the core
// workflows to whatever front end is listening.
package notify

import (
	"sync"
	"time"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one transient notification.
type Notice struct {
	Level   Level
	Message string
	At      time.Time
}

// Bus is a buffered fan-in channel of notices. A nil *Bus discards
// everything, so components never need to check for one.
type Bus struct {
	mu     sync.Mutex
	ch     chan Notice
	closed bool
	now    func() time.Time
}

// NewBus creates a bus holding up to buffer undelivered notices. When the
// buffer is full new notices are dropped rather than blocking the sender.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{ch: make(chan Notice, buffer), now: time.Now}
}

// Publish sends a notice without blocking. It reports whether the notice was
// queued.
func (b *Bus) Publish(level Level, msg string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- Notice{Level: level, Message: msg, At: b.now()}:
		return true
	default:
		return false
	}
}

func (b *Bus) Info(msg string) bool    { return b.Publish(LevelInfo, msg) }
func (b *Bus) Success(msg string) bool { return b.Publish(LevelSuccess, msg) }
func (b *Bus) Warn(msg string) bool    { return b.Publish(LevelWarning, msg) }
func (b *Bus) Error(msg string) bool   { return b.Publish(LevelError, msg) }

// Notices is the receive side. It is closed by Close.
func (b *Bus) Notices() <-chan Notice {
	return b.ch
}

// Close stops the bus. Later publishes are discarded.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

// Drain returns every queued notice without blocking.
func (b *Bus) Drain() []Notice {
	var out []Notice
	for {
		select {
		case n, ok := <-b.ch:
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}
