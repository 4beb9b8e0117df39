package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnoreEvent(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{
			name:  "ref written",
			event: fsnotify.Event{Name: "/repo/.git/refs/heads/main", Op: fsnotify.Write},
			want:  false,
		},
		{
			name:  "ref lock file",
			event: fsnotify.Event{Name: "/repo/.git/refs/heads/main.lock", Op: fsnotify.Create},
			want:  true,
		},
		{
			name:  "chmod event ignored",
			event: fsnotify.Event{Name: "/repo/.git/HEAD", Op: fsnotify.Chmod},
			want:  true,
		},
		{
			name:  "HEAD renamed into place",
			event: fsnotify.Event{Name: "/repo/.git/HEAD", Op: fsnotify.Rename},
			want:  false,
		},
		{
			name:  "branch deleted",
			event: fsnotify.Event{Name: "/repo/.git/refs/heads/old", Op: fsnotify.Remove},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldIgnoreEvent(tt.event)
			if got != tt.want {
				t.Errorf("shouldIgnoreEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatchRepository_RedrawsOnRefChange(t *testing.T) {
	r := newDiskRepo(t)
	m1 := r.commit("initial")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	var draws atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchRepository(cmd, r.loc, 10*time.Millisecond, func() error {
			if draws.Add(1) == 2 {
				cancel()
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return draws.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(r.loc.RefsDir(), "heads", "main"), []byte(m1.String()+"\n"), 0644))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.GreaterOrEqual(t, draws.Load(), int32(2))
}
