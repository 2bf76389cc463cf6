package models

import "time"

// ProcessingStatus is the lifecycle state of an intern response
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing" // claimed by a worker, not yet terminal
	StatusProcessed  ProcessingStatus = "processed"
	StatusEscalated  ProcessingStatus = "escalated"
	StatusFailed     ProcessingStatus = "failed"
)

// IsTerminal reports whether no further processing will happen
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusEscalated || s == StatusFailed
}

// SenderType identifies who authored a message
type SenderType string

const (
	SenderSupervisor SenderType = "supervisor"
	SenderTeam       SenderType = "team"
	SenderIntern     SenderType = "intern"
)

func (t SenderType) Valid() bool {
	switch t {
	case SenderSupervisor, SenderTeam, SenderIntern:
		return true
	}
	return false
}

// Response is an intern's reply to a message, waiting to be processed
type Response struct {
	ID                    string           `json:"id" db:"id"`
	MessageID             string           `json:"message_id" db:"message_id"`
	SessionID             string           `json:"session_id" db:"session_id"`
	UserID                string           `json:"user_id" db:"user_id"`
	Content               string           `json:"content" db:"content"`
	ReceivedAt            time.Time        `json:"received_at" db:"received_at"`
	Processed             bool             `json:"processed" db:"processed"`
	ProcessingStatus      ProcessingStatus `json:"processing_status" db:"processing_status"`
	EscalationReason      *string          `json:"escalation_reason" db:"escalation_reason"`
	AutoResponseGenerated bool             `json:"auto_response_generated" db:"auto_response_generated"`
	ClaimedBy             string           `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt             *time.Time       `json:"claimed_at,omitempty" db:"claimed_at"`
}

// Message is a message in an internship session, from any sender
type Message struct {
	ID               string     `json:"id" db:"id"`
	SessionID        string     `json:"session_id" db:"session_id"`
	UserID           string     `json:"user_id" db:"user_id"`
	SenderType       SenderType `json:"sender_type" db:"sender_type"`
	SenderName       string     `json:"sender_name" db:"sender_name"`
	SenderRole       string     `json:"sender_role" db:"sender_role"`
	SenderDepartment string     `json:"sender_department,omitempty" db:"sender_department"`
	Content          string     `json:"content" db:"content"`
	SentAt           time.Time  `json:"sent_at" db:"sent_at"`
	InReplyTo        string     `json:"in_reply_to,omitempty" db:"in_reply_to"`
	IsAutoResponse   bool       `json:"is_auto_response" db:"is_auto_response"`
}

// Session is a virtual internship the intern is enrolled in
type Session struct {
	ID          string `json:"id" db:"id"`
	UserID      string `json:"user_id" db:"user_id"`
	JobTitle    string `json:"job_title" db:"job_title"`
	CompanyName string `json:"company_name" db:"company_name"`
}

// Profile holds the intern's display details
type Profile struct {
	ID       string `json:"id" db:"id"`
	FullName string `json:"full_name" db:"full_name"`
}

// Outcome is the terminal write applied to a claimed response
type Outcome struct {
	Status                ProcessingStatus
	EscalationReason      *string
	AutoResponseGenerated bool
}

// ProcessRequest is the body accepted by the processing endpoint
type ProcessRequest struct {
	ResponseID   string `json:"response_id,omitempty"`
	BatchProcess bool   `json:"batch_process,omitempty"`
}

// SubmitResponseRequest is the body accepted by the messaging endpoint
type SubmitResponseRequest struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
}
