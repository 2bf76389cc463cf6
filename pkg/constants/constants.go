package constants

import "time"

// Urgency tier boundaries, in hours until the deadline
const (
	// UrgentWindowHours - Deadlines within this many hours are urgent
	UrgentWindowHours = 24

	// SoonWindowHours - Deadlines within this many hours (past the urgent window) are soon
	SoonWindowHours = 72

	// ReminderWindow - Downloaded ICS events start this long before the deadline
	ReminderWindow = 24 * time.Hour

	// DefaultEventDuration - Calendar links default to a point event of this length
	DefaultEventDuration = 1 * time.Hour

	// BusinessDayEndHour - Business deadlines are pinned to this local hour
	BusinessDayEndHour = 17
)

// Response analysis thresholds, measured in characters
const (
	// ComplexResponseLength - Longer responses may be escalated or marked high complexity
	ComplexResponseLength = 200

	// FollowupResponseLength - Longer responses always warrant a follow-up
	FollowupResponseLength = 50

	// ComplexResponseSentences - More sentences than this (with length) escalates
	ComplexResponseSentences = 2
)

// Default processing configuration values
const (
	DefaultBatchSize        = 10
	DefaultLLMModel         = "gpt-4o-mini"
	DefaultLLMMaxTokens     = 200
	DefaultLLMTemperature   = 0.7
	DefaultClaimTTLMS       = 5 * 60 * 1000
	DefaultLeaderTTLSeconds = 10

	// DefaultLeaderElectionIntervalSeconds - Leader election check interval
	DefaultLeaderElectionIntervalSeconds = 5

	// DefaultReclaimIntervalSeconds - How often the leader returns stale claims to pending
	DefaultReclaimIntervalSeconds = 60
)

// Redis key prefixes and names
const (
	PendingResponsesKey = "responses:pending"
	ResponseKeyPrefix   = "response:"
	ProcessingKey       = "responses:processing"
	MessageKeyPrefix    = "message:"
	SessionMessagesKey  = "session_messages:"
	SessionKeyPrefix    = "session:"
	ProfileKeyPrefix    = "profile:"
	LeaderElectionKey   = "responses:processor:leader"
)

// Store backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

func MillisecondsToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
