package types

// Tab is the capability surface the workspace engine needs from a browser
// tab. Implementations must be comparable (typically a pointer) so the
// engine can remember tabs by identity.
type Tab interface {
	// WorkspaceID returns the owning workspace, if one is assigned.
	WorkspaceID() (string, bool)
	SetWorkspaceID(uuid string)
	Pinned() bool
	Essential() bool
	// ContainerID returns the contextual identity, 0 for none.
	ContainerID() int64
}

// TabHost enumerates and manipulates the tabs of one window.
type TabHost interface {
	Tabs() []Tab
	SelectedTab() Tab
	SelectTab(tab Tab)
	ShowTab(tab Tab)
	HideTab(tab Tab)
	// OpenTab creates a new tab loading url and returns it unselected.
	OpenTab(url string) Tab
	RemoveTab(tab Tab)
}
