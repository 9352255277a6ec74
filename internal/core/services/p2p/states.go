package p2p

// StateID identifies one state of the hierarchical machine. Parent
// states provide default handling that leaf states can override; an
// unhandled message bubbles up the parent chain to the root.
type StateID int

const (
	stateRoot StateID = iota
	stateNotSupported
	stateDisabling
	stateDisabled
	stateDisabledIdle
	stateWaitingArbitration
	stateEnabled
	stateInactive
	stateGroupCreating
	stateUserAuthInvite
	stateUserAuthNegotiation
	stateProvisionDiscovery
	stateGroupNegotiation
	stateFrequencyConflict
	stateRejectWait
	stateGroupCreated
	stateUserAuthJoin
	stateOngoingGroupRemoval
)

// parentOf encodes the state hierarchy. Leaves absent from a chain take
// their defaults from the ancestors listed here.
var parentOf = map[StateID]StateID{
	stateNotSupported:        stateRoot,
	stateDisabling:           stateRoot,
	stateDisabled:            stateRoot,
	stateDisabledIdle:        stateDisabled,
	stateWaitingArbitration:  stateDisabled,
	stateEnabled:             stateRoot,
	stateInactive:            stateEnabled,
	stateGroupCreating:       stateEnabled,
	stateUserAuthInvite:      stateGroupCreating,
	stateUserAuthNegotiation: stateGroupCreating,
	stateProvisionDiscovery:  stateGroupCreating,
	stateGroupNegotiation:    stateGroupCreating,
	stateFrequencyConflict:   stateGroupCreating,
	stateRejectWait:          stateGroupCreating,
	stateGroupCreated:        stateEnabled,
	stateUserAuthJoin:        stateGroupCreated,
	stateOngoingGroupRemoval: stateGroupCreated,
}

func (s StateID) String() string {
	switch s {
	case stateRoot:
		return "Root"
	case stateNotSupported:
		return "NotSupported"
	case stateDisabling:
		return "Disabling"
	case stateDisabled:
		return "Disabled"
	case stateDisabledIdle:
		return "DisabledIdle"
	case stateWaitingArbitration:
		return "WaitingForResourceArbitration"
	case stateEnabled:
		return "Enabled"
	case stateInactive:
		return "Inactive"
	case stateGroupCreating:
		return "GroupCreating"
	case stateUserAuthInvite:
		return "UserAuthorizingInviteRequest"
	case stateUserAuthNegotiation:
		return "UserAuthorizingNegotiationRequest"
	case stateProvisionDiscovery:
		return "ProvisionDiscovery"
	case stateGroupNegotiation:
		return "GroupNegotiation"
	case stateFrequencyConflict:
		return "FrequencyConflict"
	case stateRejectWait:
		return "RejectWait"
	case stateGroupCreated:
		return "GroupCreated"
	case stateUserAuthJoin:
		return "UserAuthorizingJoin"
	case stateOngoingGroupRemoval:
		return "OngoingGroupRemoval"
	}
	return "Unknown"
}

// isDescendantOf reports whether s sits under ancestor (inclusive).
func (s StateID) isDescendantOf(ancestor StateID) bool {
	for cur := s; ; cur = parentOf[cur] {
		if cur == ancestor {
			return true
		}
		if cur == stateRoot {
			return false
		}
	}
}
