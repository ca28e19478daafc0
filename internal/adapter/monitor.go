/*
battery-gauge - Battery and AC adapter telemetry over I2C.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
)

const (
	// PresenceRegister holds the adapter presence flag.
	PresenceRegister register.Address = 0x6F
	presenceBit                       = 0x10

	DefaultInterval = 500 * time.Millisecond
)

// State of the AC adapter as seen by the monitor.
type State int32

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOnline:
		return "Online"
	case StateOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// ByteReader reads a single register.
type ByteReader interface {
	ReadByte(reg register.Address) byte
}

// Monitor polls the AC adapter presence and calls notify when it changes.
type Monitor struct {
	reader   ByteReader
	interval time.Duration
	notify   func(online bool)
	log      *logging.Logger

	// state is the only presence record, Online is derived from it.
	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(reader ByteReader, interval time.Duration, notify func(online bool), log *logging.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		reader:   reader,
		interval: interval,
		notify:   notify,
		log:      log,
	}
}

// Online returns the last observed presence, false until the first poll.
func (m *Monitor) Online() bool {
	return m.State() == StateOnline
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Poll reads the presence register once. A failed read reads as offline.
func (m *Monitor) Poll() bool {
	online := m.reader.ReadByte(PresenceRegister)&presenceBit != 0
	m.Observe(online)
	return online
}

// Observe records a presence observation and notifies if it differs from
// the previous one. The first observation only sets the state.
// Returns whether a notification was sent.
func (m *Monitor) Observe(online bool) bool {
	next := StateOffline
	if online {
		next = StateOnline
	}
	prev := State(m.state.Swap(int32(next)))
	if prev == StateUnknown || prev == next {
		return false
	}

	m.log.Infof("AC adapter changed from %s to %s", prev, next)
	if m.notify != nil {
		m.notify(online)
	}
	return true
}

// Start polls in a goroutine until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Stop cancels polling and blocks until the goroutine has exited, after
// that the monitor no longer touches the bus.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	m.log.Debugf("Polling AC adapter every %s", m.interval)
	for {
		if ctx.Err() != nil {
			return
		}
		m.Poll()

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}
