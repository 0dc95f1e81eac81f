package access

import "poll-app/internal/domain/plans"

// CapabilitiesFor lists the features unlocked for a state. A zero limit
// means unlimited.
func CapabilitiesFor(state AccessState, limits plans.Limits) []string {
	if state != AccessFull && state != AccessTrial {
		return []string{}
	}

	caps := []string{CapCreatePolls}
	if limits.PollsPerMonth == 0 && limits.ActivePolls == 0 {
		caps = append(caps, CapUnlimitedPolls)
	}
	if limits.Profiles != 1 {
		caps = append(caps, CapMultipleProfiles)
	}
	if limits.TeamMembers != 1 {
		caps = append(caps, CapTeam)
	}
	return caps
}
