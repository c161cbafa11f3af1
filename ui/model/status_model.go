package model

import (
	"sync/atomic"
)

// StatusModel carries the last user-facing status line. Background work
// (camera requests, weight polling) writes it; the UI tick reads it.
// The zero value is empty and usable.
type StatusModel struct {
	msg     atomic.Pointer[string]
	version atomic.Uint64
}

// Set stores msg. Repeating the current message is a no-op.
func (m *StatusModel) Set(msg string) {
	if m == nil {
		return
	}
	if cur := m.msg.Load(); cur != nil && *cur == msg {
		return
	}
	m.msg.Store(&msg)
	m.version.Add(1)
}

// Get returns the message and its version.
func (m *StatusModel) Get() (string, uint64) {
	if m == nil {
		return "", 0
	}
	v := m.version.Load()
	if p := m.msg.Load(); p != nil {
		return *p, v
	}
	return "", v
}
