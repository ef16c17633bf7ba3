//go:build integration

package rod_test

import (
	"context"
	"testing"

	"github.com/bkuiper/adwatch"
	"github.com/bkuiper/adwatch/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LazyLaunch(t *testing.T) {
	m := rod.NewManager()
	defer m.Close()

	// No process before first use.
	assert.Zero(t, m.LauncherPID())

	bctx, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer bctx.Close()

	assert.NotZero(t, m.LauncherPID())
}

func TestManager_RecyclesAfterRequestBudget(t *testing.T) {
	m := rod.NewManager(rod.WithMaxRequests(1))
	defer m.Close()

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	pid := m.LauncherPID()
	first.Close()

	second, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, pid, m.LauncherPID())
}

func TestManager_ContextsAreIsolated(t *testing.T) {
	m := rod.NewManager(rod.WithIdentities([]adwatch.Identity{
		{UserAgent: "test-agent", Width: 1024, Height: 768},
	}))
	defer m.Close()

	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer a.Close()

	b, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer b.Close()

	// Cookies set in one context must not appear in the other.
	require.NoError(t, a.Page.Navigate("about:blank"))
	require.NoError(t, b.Page.Navigate("about:blank"))

	_, err = a.Page.Eval(`() => { document.cookie = "probe=1" }`)
	require.NoError(t, err)

	obj, err := b.Page.Eval(`() => document.cookie`)
	require.NoError(t, err)
	assert.NotContains(t, obj.Value.Str(), "probe=1")
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m := rod.NewManager()
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
