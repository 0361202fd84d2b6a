package entity

import "strconv"

// Actor is the chat user behind an interaction.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// DisplayName returns "@username" when known, otherwise the numeric id.
func (a Actor) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return "id" + strconv.FormatInt(a.ID, 10)
}
