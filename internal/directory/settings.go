package directory

import "time"

// Settings are the user preferences that shape directory behaviour.
type Settings struct {
	// Homepage is loaded by tabs the directory opens.
	Homepage string
	// ContainerSpecificEssentials scopes essential tabs to the container of
	// the active workspace.
	ContainerSpecificEssentials bool
	// ForceContainerToWorkspace switches to the workspace bound to a
	// container when a tab is opened in that container.
	ForceContainerToWorkspace bool
	// OpenNewTabIfLastUnpinnedTabIsClosed ignores pinned tabs when deciding
	// whether a closing tab is the last one of its workspace.
	OpenNewTabIfLastUnpinnedTabIsClosed bool
	// NaturalScroll inverts scroll and swipe direction.
	NaturalScroll bool
	// WrapAroundNavigation makes scroll and swipe cycle past the ends of
	// the list instead of stopping.
	WrapAroundNavigation bool
	// ScrollThreshold is the accumulated wheel delta that triggers a switch.
	ScrollThreshold float64
	// ScrollCooldown is the minimum time between wheel-triggered switches.
	ScrollCooldown time.Duration
	// SwipeThreshold is the accumulated gesture delta that fixes a swipe
	// direction.
	SwipeThreshold float64
}

// DefaultSettings returns the stock preferences.
func DefaultSettings() Settings {
	return Settings{
		Homepage:                  "about:home",
		ForceContainerToWorkspace: true,
		NaturalScroll:             true,
		WrapAroundNavigation:      true,
		ScrollThreshold:           2,
		ScrollCooldown:            200 * time.Millisecond,
		SwipeThreshold:            0.25,
	}
}

// withDefaults fills zero numeric fields from DefaultSettings.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Homepage == "" {
		s.Homepage = def.Homepage
	}
	if s.ScrollThreshold <= 0 {
		s.ScrollThreshold = def.ScrollThreshold
	}
	if s.ScrollCooldown <= 0 {
		s.ScrollCooldown = def.ScrollCooldown
	}
	if s.SwipeThreshold <= 0 {
		s.SwipeThreshold = def.SwipeThreshold
	}
	return s
}
