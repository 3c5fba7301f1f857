package models

import "strings"

// Emoji references either an unicode emoji (empty ID) or a custom guild emoji
type Emoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
}

// ParseEmoji parses a stored emoji text
// <a:name:id>, <:name:id> and name:id are custom emoji, everything else is an unicode emoji
func ParseEmoji(text string) Emoji {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, ":") {
		return Emoji{Name: text}
	}

	text = strings.TrimSuffix(strings.TrimPrefix(text, "<"), ">")
	parts := strings.Split(text, ":")

	var emoji Emoji
	if len(parts) >= 3 {
		emoji.Animated = parts[0] == "a"
		parts = parts[len(parts)-2:]
	}
	emoji.Name = parts[0]
	if len(parts) > 1 {
		emoji.ID = parts[1]
	}
	return emoji
}

// Equal compares by id if both have one, by name otherwise
func (e Emoji) Equal(other Emoji) bool {
	if e.ID != "" && e.ID == other.ID {
		return true
	}
	return e.Name != "" && e.Name == other.Name
}

// Key identifies the emoji in reaction tallies, name:id for custom emoji
func (e Emoji) Key() string {
	if e.ID != "" {
		return e.Name + ":" + e.ID
	}
	return e.Name
}

// String formats the emoji the way it is written in a message
func (e Emoji) String() string {
	if e.ID == "" {
		return e.Name
	}
	if e.Animated {
		return "<a:" + e.Name + ":" + e.ID + ">"
	}
	return "<:" + e.Name + ":" + e.ID + ">"
}
