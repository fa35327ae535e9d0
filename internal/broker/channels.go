package broker

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// UserChannelPrefix prefixes every private per-user channel
	UserChannelPrefix = "private-user."

	// UserChannelPattern matches all private user channels on every transport
	UserChannelPattern = UserChannelPrefix + "*"
)

// UserChannel returns the private channel owned by userID
func UserChannel(userID uuid.UUID) string {
	return UserChannelPrefix + userID.String()
}

// ParseUserChannel extracts the owner of a private user channel
func ParseUserChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, UserChannelPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, UserChannelPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
