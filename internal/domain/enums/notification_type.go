package enums

type NotificationType string

const (
	NotificationTypeVoteReceived NotificationType = "vote_received"
)
