package models

import "time"

// Access statuses recorded in the access_logs table. GRANTED and DENIED come
// from raw scans reported by the door controller; AUTHORIZED and REVOKED are
// control rows written by the card service and are never produced by a scan.
const (
	StatusGranted    = "GRANTED"
	StatusDenied     = "DENIED"
	StatusAuthorized = "AUTHORIZED"
	StatusRevoked    = "REVOKED"
)

// Sentinel values used when real data is unavailable.
const (
	UnknownUserName    = "Unknown"
	DefaultCardHolder  = "Unknown User"
	DefaultAccessPoint = "Main Door"
)

// Access points stamped on control rows, depending on what triggered them.
const (
	AccessPointAPI    = "API"
	AccessPointSystem = "System"
)

// AccessLog is one row of the access_logs audit table. Rows are immutable
// once written, with a single exception: revocation flips the status of the
// most recent AUTHORIZED row for a tag to REVOKED in place.
type AccessLog struct {
	UserName    string    `json:"user_name"`
	RFIDTag     string    `json:"rfid_tag"`
	AccessPoint string    `json:"access_point"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccessLogEvent is a parsed access-log payload from the access topic,
// not yet enriched with a user name.
type AccessLogEvent struct {
	Status      string
	Tag         string
	AccessPoint string
}

// CardAction is the verb of a card command exchanged on the admin topic.
type CardAction string

const (
	CardActionAdd    CardAction = "ADD"
	CardActionRemove CardAction = "REMOVE"
)

// AdminCommandEvent is a parsed CARD_ADDED/CARD_REMOVED notification
// received from the device side.
type AdminCommandEvent struct {
	Action CardAction
	Tag    string
}
