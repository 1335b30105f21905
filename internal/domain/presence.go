package domain

// PresenceState is the visible online/offline state of an actor.
type PresenceState string

const (
	PresenceOnline  PresenceState = "ONLINE"
	PresenceOffline PresenceState = "OFFLINE"
)
