package service

import (
	"sync/atomic"
	"time"
)

// State - флаги для проб: монитор запущен, WS статусов ордеров жив, последний тик.
type State struct {
	startedAt time.Time

	ready       atomic.Bool
	wsConnected atomic.Bool
	lastTick    atomic.Int64 // unix nano
	ticks       atomic.Uint64
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

// TouchTick вызывается монитором после каждого тика.
func (s *State) TouchTick(t time.Time) {
	s.lastTick.Store(t.UnixNano())
	s.ticks.Add(1)
}

func (s *State) LastTick() time.Time {
	n := s.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (s *State) Ticks() uint64 { return s.ticks.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
