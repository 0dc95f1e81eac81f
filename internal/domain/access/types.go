package access

type AccessState string

const (
	AccessTrial   AccessState = "trial"
	AccessFull    AccessState = "full"
	AccessLimited AccessState = "limited"
	AccessLocked  AccessState = "locked"
)

const (
	CapCreatePolls      = "create_polls"
	CapUnlimitedPolls   = "unlimited_polls"
	CapMultipleProfiles = "multiple_profiles"
	CapTeam             = "team"
)
