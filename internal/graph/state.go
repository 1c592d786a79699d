package graph

import (
	"slices"
	"strings"

	"github.com/cloudwego/eino/compose"
)

// TeamState is the graph local state of one conversation.
type TeamState struct {
	Turn          int
	LatestSpeaker string
	Terminated    bool
}

// handOff picks the participant after latest in order, or compose.END once
// maxTurns turns were taken or the latest content carries keyword.
func handOff(order []string, state *TeamState, latestContent, keyword string, maxTurns int) string {
	if state.Turn >= maxTurns {
		return compose.END
	}
	if keyword != "" && strings.Contains(latestContent, keyword) {
		state.Terminated = true
		return compose.END
	}
	i := slices.Index(order, state.LatestSpeaker)
	return order[(i+1)%len(order)]
}
