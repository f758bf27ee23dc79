package errcode

// Codes carried in progress notifications:
// - 0: success
// - 4xxx: the user can act on it (wrong document, AI disabled)
// - 5xxx: system failure, the cycle stops
const (
	OK            = 0
	NotSyllabus   = 4001
	Infected      = 4002
	AIUnavailable = 4003
	EmptyDocument = 4004
	AIFailure     = 5001
	SystemError   = 5000
)
