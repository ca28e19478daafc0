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
	"testing"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPresence returns one register value per read, repeating the last.
type scriptedPresence struct {
	mu     sync.Mutex
	values []byte
	reads  int
}

func (s *scriptedPresence) ReadByte(reg register.Address) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.reads, len(s.values)-1)
	s.reads++
	return s.values[i]
}

func (s *scriptedPresence) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func TestNotifiesOnlyOnTransitions(t *testing.T) {
	var notified []int
	i := 0
	m := NewMonitor(nil, 0, func(bool) { notified = append(notified, i) }, logging.Discard())

	for idx, online := range []bool{false, false, true, true, false} {
		i = idx
		m.Observe(online)
	}
	assert.Equal(t, []int{2, 4}, notified)
	assert.Equal(t, StateOffline, m.State())
	assert.False(t, m.Online())
}

func TestInitialStateUnknown(t *testing.T) {
	m := NewMonitor(nil, 0, nil, logging.Discard())
	assert.Equal(t, StateUnknown, m.State())
	assert.False(t, m.Observe(true))
	assert.Equal(t, StateOnline, m.State())
	assert.True(t, m.Online())
}

func TestOnlineFollowsState(t *testing.T) {
	m := NewMonitor(nil, 0, nil, logging.Discard())
	for _, online := range []bool{true, false, false, true} {
		m.Observe(online)
		assert.Equal(t, online, m.Online())
		assert.Equal(t, m.State() == StateOnline, m.Online())
	}
}

func TestConcurrentObserveAndRead(t *testing.T) {
	m := NewMonitor(nil, 0, nil, logging.Discard())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			m.Observe(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if m.Online() {
				assert.NotEqual(t, StateUnknown, m.State())
			}
		}
	}()
	wg.Wait()

	// The last observation was offline.
	assert.Equal(t, StateOffline, m.State())
	assert.False(t, m.Online())
}

func TestPollPresenceBit(t *testing.T) {
	reader := &scriptedPresence{values: []byte{0x10, 0xEF, 0x00, 0xFF}}
	m := NewMonitor(reader, 0, nil, logging.Discard())

	assert.True(t, m.Poll())
	assert.False(t, m.Poll())
	// A failed read comes back as zero.
	assert.False(t, m.Poll())
	assert.True(t, m.Poll())
}

func TestRunAndStop(t *testing.T) {
	reader := &scriptedPresence{values: []byte{0x00, 0x00, 0x10}}
	changes := make(chan bool, 8)
	m := NewMonitor(reader, time.Millisecond, func(online bool) { changes <- online }, logging.Discard())
	m.Start(context.Background())

	select {
	case online := <-changes:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("adapter change not notified")
	}

	m.Stop()
	reads := reader.count()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, reads, reader.count())
	require.Len(t, changes, 0)

	// Stopping twice is fine.
	m.Stop()
}

func TestStopsOnContextCancel(t *testing.T) {
	reader := &scriptedPresence{values: []byte{0x10}}
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(reader, time.Hour, nil, logging.Discard())
	m.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
