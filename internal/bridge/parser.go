package bridge

import (
	"encoding/json"
	"errors"
	"strings"

	"rfid-bridge/internal/models"
)

var (
	ErrMalformedAccessLog     = errors.New("malformed access log")
	ErrInvalidSecurityPayload = errors.New("invalid security payload")
)

const (
	cardAddedPrefix   = "CARD_ADDED:"
	cardRemovedPrefix = "CARD_REMOVED:"
)

// NormalizeTag joins four byte groups into the canonical colon-separated
// tag representation used as the join key across store queries and device
// commands. Case is preserved as received: the device protocol never
// case-folds, so "aa:bb:cc:dd" and "AA:BB:CC:DD" are distinct keys. Known
// limitation carried over from the controller firmware.
func NormalizeTag(groups ...string) string {
	return strings.Join(groups, ":")
}

// ParseAccessLog parses an access-log payload of the form
// "STATUS:B0:B1:B2:B3[:accessPoint]", e.g. "GRANTED:33:06:73:0E:Main Door".
// The status must be GRANTED or DENIED and each tag group must be two hex
// digits. The access point defaults to "Main Door" when the sixth field is
// absent; any fields past the sixth are ignored.
func ParseAccessLog(payload string) (models.AccessLogEvent, error) {
	parts := strings.Split(payload, ":")
	if len(parts) < 5 {
		return models.AccessLogEvent{}, ErrMalformedAccessLog
	}

	status := parts[0]
	if status != models.StatusGranted && status != models.StatusDenied {
		return models.AccessLogEvent{}, ErrMalformedAccessLog
	}

	for _, group := range parts[1:5] {
		if !isHexByte(group) {
			return models.AccessLogEvent{}, ErrMalformedAccessLog
		}
	}

	accessPoint := models.DefaultAccessPoint
	if len(parts) > 5 && parts[5] != "" {
		accessPoint = parts[5]
	}

	return models.AccessLogEvent{
		Status:      status,
		Tag:         NormalizeTag(parts[1], parts[2], parts[3], parts[4]),
		AccessPoint: accessPoint,
	}, nil
}

// ParseAdminCommand parses a CARD_ADDED/CARD_REMOVED notification. Payloads
// with any other prefix are not admin commands: the second return value is
// false and no error is reported, the message is simply not for us.
func ParseAdminCommand(payload string) (models.AdminCommandEvent, bool) {
	var action models.CardAction
	var tag string

	switch {
	case strings.HasPrefix(payload, cardAddedPrefix):
		action = models.CardActionAdd
		tag = payload[len(cardAddedPrefix):]
	case strings.HasPrefix(payload, cardRemovedPrefix):
		action = models.CardActionRemove
		tag = payload[len(cardRemovedPrefix):]
	default:
		return models.AdminCommandEvent{}, false
	}

	if tag == "" {
		return models.AdminCommandEvent{}, false
	}

	return models.AdminCommandEvent{Action: action, Tag: tag}, true
}

// ParseSecurityEvent decodes a security payload, which must be a JSON
// object. Field-level validation (required fields, defaults) belongs to the
// security service; this only rejects payloads that are not well-formed
// objects.
func ParseSecurityEvent(payload []byte) (models.SecurityEventCandidate, error) {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "{") {
		return models.SecurityEventCandidate{}, ErrInvalidSecurityPayload
	}

	var candidate models.SecurityEventCandidate
	if err := json.Unmarshal([]byte(trimmed), &candidate); err != nil {
		return models.SecurityEventCandidate{}, ErrInvalidSecurityPayload
	}

	return candidate, nil
}

func isHexByte(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
