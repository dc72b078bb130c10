package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdManager claims m from another goroutine until the returned func runs
func holdManager(t *testing.T, m *Manager) (release func()) {
	t.Helper()
	claimed := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.enter()
		close(claimed)
		<-done
		m.exit()
	}()
	<-claimed
	return func() { close(done) }
}

func TestManagerPanicsOnUseFromAnotherGoroutine(t *testing.T) {
	m := NewManager(nil)
	cube := New("cube")
	_, err := m.Register(cube)
	require.NoError(t, err)

	release := holdManager(t, m)
	tests := []struct {
		name string
		use  func()
	}{
		{"Register", func() { _, _ = m.Register(New("sphere")) }},
		{"Get", func() { m.Get("cube") }},
		{"Len", func() { m.Len() }},
		{"Names", func() { m.Names() }},
		{"Update", func() { m.Update(0) }},
		{"Render", func() { m.Render(nil) }},
		{"Remove", func() { m.Remove(cube) }},
		{"CleanUp", func() { m.CleanUp() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PanicsWithValue(t, ErrConcurrentMutation, tt.use)
		})
	}
	release()

	require.Eventually(t, func() bool { return !m.busy.Load() }, time.Second, time.Millisecond)
	got, ok := m.Get("cube")
	assert.True(t, ok)
	assert.Same(t, cube, got)
	assert.Equal(t, 1, m.Len())
}
