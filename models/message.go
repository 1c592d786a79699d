package models

import "fmt"

// Message is one turn of the team conversation.
type Message struct {
	ID      string `json:"id,omitempty"`
	Source  string `json:"source"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Source, m.Content)
}

// Stringify converts pipeline messages into the form kept in a JobRecord.
func Stringify(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.String())
	}
	return out
}
