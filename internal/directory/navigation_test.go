package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/workspaces/internal/tabstrip"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// threeWorkspaces opens a directory over A, B and C, each with one tab.
func threeWorkspaces(t *testing.T, settings Settings) (*fixture, *Directory) {
	f := newFixture(t)
	f.seed(
		types.Workspace{UUID: "a", Name: "A", Default: true},
		types.Workspace{UUID: "b", Name: "B"},
		types.Workspace{UUID: "c", Name: "C"},
	)
	for _, id := range []string{"a", "b", "c"} {
		f.strip.Add(tabstrip.Options{URL: id + "1", WorkspaceID: id})
	}
	d := f.open(settings)
	require.Equal(t, "a", d.ActiveID())
	return f, d
}

func TestShortcuts(t *testing.T) {
	f, d := threeWorkspaces(t, testSettings())

	require.NoError(t, d.ShortcutSwitchTo(f.ctx, 2))
	assert.Equal(t, "c", d.ActiveID())
	require.NoError(t, d.ShortcutSwitchTo(f.ctx, 5))
	assert.Equal(t, "c", d.ActiveID(), "out of range is ignored")
	require.NoError(t, d.ShortcutSwitchTo(f.ctx, -1))
	assert.Equal(t, "c", d.ActiveID())

	require.NoError(t, d.ChangeWorkspaceShortcut(f.ctx, 1))
	assert.Equal(t, "a", d.ActiveID(), "cycles past the end")
	require.NoError(t, d.ChangeWorkspaceShortcut(f.ctx, -1))
	assert.Equal(t, "c", d.ActiveID(), "cycles past the start")
	require.NoError(t, d.ChangeWorkspaceShortcut(f.ctx, -4))
	assert.Equal(t, "b", d.ActiveID())
}

func TestScroll(t *testing.T) {
	tests := []struct {
		name     string
		natural  bool
		wrap     bool
		start    string
		deltas   []float64
		wantHit  []bool
		wantLast string
	}{
		{name: "below threshold accumulates", start: "a",
			deltas: []float64{1, 1.5}, wantHit: []bool{false, true}, wantLast: "b"},
		{name: "negative delta moves back", start: "b",
			deltas: []float64{-2}, wantHit: []bool{true}, wantLast: "a"},
		{name: "clamps at the end", start: "c",
			deltas: []float64{3}, wantHit: []bool{false}, wantLast: "c"},
		{name: "wraps at the end", wrap: true, start: "c",
			deltas: []float64{3}, wantHit: []bool{true}, wantLast: "a"},
		{name: "natural scrolling inverts", natural: true, start: "b",
			deltas: []float64{3}, wantHit: []bool{true}, wantLast: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			s.NaturalScroll = tt.natural
			s.WrapAroundNavigation = tt.wrap
			f, d := threeWorkspaces(t, s)
			require.NoError(t, d.ChangeWorkspace(f.ctx, tt.start))

			for i, delta := range tt.deltas {
				hit, err := d.Scroll(f.ctx, delta)
				require.NoError(t, err)
				assert.Equal(t, tt.wantHit[i], hit, "delta %d", i)
			}
			assert.Equal(t, tt.wantLast, d.ActiveID())
		})
	}
}

func TestScrollCooldown(t *testing.T) {
	f, d := threeWorkspaces(t, testSettings())

	hit, err := d.Scroll(f.ctx, 3)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "b", d.ActiveID())

	f.clock.Advance(100 * time.Millisecond)
	hit, err = d.Scroll(f.ctx, 3)
	require.NoError(t, err)
	assert.False(t, hit, "within cooldown")
	assert.Equal(t, "b", d.ActiveID())

	f.clock.Advance(150 * time.Millisecond)
	hit, err = d.Scroll(f.ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit, "delta seen during cooldown was discarded")

	hit, err = d.Scroll(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "c", d.ActiveID())
}

func TestSwipe(t *testing.T) {
	tests := []struct {
		name     string
		natural  bool
		deltas   []float64
		wantHit  bool
		wantLast string
	}{
		{name: "leftward delta moves back", deltas: []float64{0.1, 0.2}, wantHit: true, wantLast: "a"},
		{name: "rightward delta moves forward", deltas: []float64{-0.3}, wantHit: true, wantLast: "c"},
		{name: "natural scrolling inverts", natural: true, deltas: []float64{0.3}, wantHit: true, wantLast: "c"},
		{name: "below threshold does nothing", deltas: []float64{0.1, 0.1}, wantHit: false, wantLast: "b"},
		{name: "direction is the last one past threshold", deltas: []float64{0.3, -0.7}, wantHit: true, wantLast: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			s.NaturalScroll = tt.natural
			f, d := threeWorkspaces(t, s)
			require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))

			d.BeginSwipe()
			for _, delta := range tt.deltas {
				d.UpdateSwipe(delta)
			}
			hit, err := d.EndSwipe(f.ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHit, hit)
			assert.Equal(t, tt.wantLast, d.ActiveID())
		})
	}
}

func TestSwipeWithoutBegin(t *testing.T) {
	f, d := threeWorkspaces(t, testSettings())
	d.UpdateSwipe(1)
	hit, err := d.EndSwipe(f.ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "a", d.ActiveID())
}
