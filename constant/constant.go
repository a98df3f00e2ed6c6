package constant

type MeetingStatus string

const (
	MeetingStatusPending    MeetingStatus = "pending"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusProcessed  MeetingStatus = "processed"
	MeetingStatusFailed     MeetingStatus = "failed"
)

func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingStatusPending, MeetingStatusProcessing, MeetingStatusProcessed, MeetingStatusFailed:
		return true
	}
	return false
}

func (s MeetingStatus) String() string {
	return string(s)
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	AudioContentType = "audio/mp4"
	AudioExtension   = ".m4a"
	MeetingKeyPrefix = "meetings"
)
