package enums

type AuditAction string

const (
	AuditActionReciprocalVote AuditAction = "reciprocal_vote_detected"
	AuditActionVotesExported  AuditAction = "votes_exported"
)
