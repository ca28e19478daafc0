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

package supply

import (
	"fmt"
	"sync"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
)

// Sink receives change notifications for a supply.
type Sink interface {
	SupplyChanged(src PropertySource)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(src PropertySource)

func (f SinkFunc) SupplyChanged(src PropertySource) { f(src) }

// Registry holds the registered supplies, which supplies feed which and
// the sinks that get told when a supply changes.
type Registry struct {
	log *logging.Logger

	mu         sync.RWMutex
	supplies   map[string]PropertySource
	order      []string
	suppliedTo map[string][]string
	sinks      []Sink
}

func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		log:        log,
		supplies:   map[string]PropertySource{},
		suppliedTo: map[string][]string{},
	}
}

// Register adds src. suppliedTo names the supplies src feeds, they are
// notified as well whenever src changes.
func (r *Registry) Register(src PropertySource, suppliedTo ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := src.Name()
	if _, ok := r.supplies[name]; ok {
		return fmt.Errorf("power supply '%s' already registered", name)
	}
	r.supplies[name] = src
	r.order = append(r.order, name)
	r.suppliedTo[name] = append([]string(nil), suppliedTo...)
	r.log.Debugf("Registered %s power supply '%s'", src.Type(), name)
	return nil
}

func (r *Registry) AddSink(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// Lookup finds a supply by name.
func (r *Registry) Lookup(name string) (PropertySource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.supplies[name]
	return src, ok
}

// Supplies returns the supplies in registration order.
func (r *Registry) Supplies() []PropertySource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PropertySource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.supplies[name])
	}
	return out
}

// Changed notifies the sinks about name and every supply it feeds.
func (r *Registry) Changed(name string) {
	r.mu.RLock()
	src, ok := r.supplies[name]
	if !ok {
		r.mu.RUnlock()
		r.log.Errorf("Change notification for unknown power supply '%s'", name)
		return
	}
	changed := []PropertySource{src}
	for _, dep := range r.suppliedTo[name] {
		if d, ok := r.supplies[dep]; ok {
			changed = append(changed, d)
		}
	}
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()

	for _, s := range changed {
		r.log.Debugf("Power supply '%s' changed", s.Name())
		for _, sink := range sinks {
			sink.SupplyChanged(s)
		}
	}
}

// Snapshot reads every property of src, keyed by property name.
// Batteries are read from a single sample.
func Snapshot(src PropertySource) map[string]interface{} {
	out := map[string]interface{}{}
	if b, ok := src.(*Battery); ok {
		for p, v := range b.Values() {
			out[p.String()] = v.Interface()
		}
		return out
	}
	for _, p := range src.Properties() {
		v, err := src.GetProperty(p)
		if err != nil {
			continue
		}
		out[p.String()] = v.Interface()
	}
	return out
}
