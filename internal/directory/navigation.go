package directory

import (
	"context"
	"math"
	"time"
)

// navState tracks continuous-input navigation. Guarded by Directory.mu.
type navState struct {
	scrollDelta float64
	lastScroll  time.Time

	swiping    bool
	swipeDelta float64
	swipeDir   int // -1 back, +1 forward, 0 undecided
}

// ShortcutSwitchTo switches to the workspace at index. An out-of-range
// index is ignored.
func (d *Directory) ShortcutSwitchTo(ctx context.Context, index int) error {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return nil
	}
	return d.ChangeWorkspace(ctx, list[index].UUID)
}

// ChangeWorkspaceShortcut switches offset places away, cycling past either
// end of the list.
func (d *Directory) ChangeWorkspaceShortcut(ctx context.Context, offset int) error {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	n := len(list)
	if n == 0 {
		return nil
	}
	current := indexOf(list, d.ActiveID())
	if current < 0 {
		current = 0
	}
	next := ((current+offset)%n + n) % n
	return d.ChangeWorkspace(ctx, list[next].UUID)
}

// Scroll feeds one wheel delta. Deltas accumulate until their magnitude
// reaches the scroll threshold; a switch then fires unless the previous
// wheel switch happened within the cooldown. It reports whether a switch
// was performed.
func (d *Directory) Scroll(ctx context.Context, delta float64) (bool, error) {
	now := d.clock.Now()

	d.mu.Lock()
	if !d.nav.lastScroll.IsZero() && now.Sub(d.nav.lastScroll) < d.settings.ScrollCooldown {
		d.nav.scrollDelta = 0
		d.mu.Unlock()
		return false, nil
	}
	d.nav.scrollDelta += delta
	acc := d.nav.scrollDelta
	if math.Abs(acc) < d.settings.ScrollThreshold {
		d.mu.Unlock()
		return false, nil
	}
	d.nav.scrollDelta = 0
	d.nav.lastScroll = now
	d.mu.Unlock()

	dir := 1
	if acc < 0 {
		dir = -1
	}
	if d.settings.NaturalScroll {
		dir = -dir
	}
	return d.step(ctx, dir)
}

// BeginSwipe starts a gesture.
func (d *Directory) BeginSwipe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nav.swiping = true
	d.nav.swipeDelta = 0
	d.nav.swipeDir = 0
}

// UpdateSwipe feeds one gesture delta. Once the accumulated delta passes
// the swipe threshold its sign fixes the direction.
func (d *Directory) UpdateSwipe(delta float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.nav.swiping {
		return
	}
	d.nav.swipeDelta += delta
	if math.Abs(d.nav.swipeDelta) <= d.settings.SwipeThreshold {
		return
	}
	// A positive delta is a leftward swipe, which moves back unless
	// natural scrolling is on.
	dir := -1
	if d.nav.swipeDelta < 0 {
		dir = 1
	}
	if d.settings.NaturalScroll {
		dir = -dir
	}
	d.nav.swipeDir = dir
}

// EndSwipe finishes the gesture and switches if a direction was fixed. It
// reports whether a switch was performed.
func (d *Directory) EndSwipe(ctx context.Context) (bool, error) {
	d.mu.Lock()
	active := d.nav.swiping
	dir := d.nav.swipeDir
	d.nav = navState{scrollDelta: d.nav.scrollDelta, lastScroll: d.nav.lastScroll}
	d.mu.Unlock()

	if !active || dir == 0 {
		return false, nil
	}
	return d.step(ctx, dir)
}

// step moves one workspace in dir, wrapping or clamping at the ends.
func (d *Directory) step(ctx context.Context, dir int) (bool, error) {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return false, err
	}
	n := len(list)
	current := indexOf(list, d.ActiveID())
	if current < 0 {
		return false, nil
	}
	target := current + dir
	if d.settings.WrapAroundNavigation {
		target = (target + n) % n
	} else {
		target = max(0, min(n-1, target))
	}
	if target == current {
		return false, nil
	}
	if err := d.ChangeWorkspace(ctx, list[target].UUID); err != nil {
		return false, err
	}
	return true, nil
}
