package reminder_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranaconnect/kirana/internal/agent"
	"github.com/kiranaconnect/kirana/internal/logger"
	"github.com/kiranaconnect/kirana/internal/reminder"
)

func TestGenerator_SetCopy(t *testing.T) {
	g := newGenerator(agent.TemplateCompleter{})
	c := reminder.DefaultCopy()
	c.Brand = "Galli Mart"
	c.SignOff = ""
	g.SetCopy(c)

	buyer, item := testBuyer("120")
	msg, err := g.ItemReminder(context.Background(), buyer, item, 1)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Team Galli Mart")
	assert.Equal(t, "Galli Mart", g.Copy().Brand)
}

func TestWatchCopy_ReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("brand: First\n"), 0o600))

	var (
		mu     sync.Mutex
		brands []string
	)
	apply := func(c reminder.Copy) {
		mu.Lock()
		defer mu.Unlock()
		brands = append(brands, c.Brand)
	}
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), brands...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reminder.WatchCopy(ctx, path, apply, logger.Discard()) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("discount_codes: []\n"), 0o600))
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, seen(), "invalid copy must not be applied")

	require.NoError(t, os.WriteFile(path, []byte("brand: Second\n"), 0o600))
	assert.Eventually(t, func() bool {
		b := seen()
		return len(b) > 0 && b[len(b)-1] == "Second"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatchCopy_MissingDirectory(t *testing.T) {
	err := reminder.WatchCopy(context.Background(), "/does/not/exist/copy.yaml",
		func(reminder.Copy) {}, logger.Discard())
	require.Error(t, err)
}
