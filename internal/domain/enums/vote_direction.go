package enums

type VoteDirection string

const (
	VoteDirectionSent     VoteDirection = "sent"
	VoteDirectionReceived VoteDirection = "received"
)

func ParseVoteDirection(value string) (VoteDirection, bool) {
	switch VoteDirection(value) {
	case VoteDirectionSent:
		return VoteDirectionSent, true
	case VoteDirectionReceived:
		return VoteDirectionReceived, true
	default:
		return "", false
	}
}
