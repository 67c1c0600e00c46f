package command

import "strings"

// Intent is a relay control instruction recognized in free-form text.
type Intent struct {
	Relay int
	On    bool
}

// Phrase tables for intent recognition. Matching is case-insensitive
// substring search; off phrases are checked first so "turn off" never
// matches the "on" in its own suffix.
var (
	offPhrases = []string{"turn off", "switch off", "deactivate", "power off"}
	onPhrases  = []string{"turn on", "switch on", "activate", "power on"}

	relayPhrases = []struct {
		phrase string
		relay  int
	}{
		{"relay 2", 2},
		{"second relay", 2},
		{"living room", 2},
		{"relay 3", 3},
		{"third relay", 3},
		{"relay 4", 4},
		{"fourth relay", 4},
		{"bedroom", 1},
	}
)

// ParseIntent recognizes a relay control instruction in a natural
// language query.
//
// The query must contain an on or off phrase to count as a command;
// everything else is a question, not an instruction. When no relay is
// named, relay 1 is assumed.
//
// Parameters:
//   - query: Free-form user text
//
// Returns:
//   - *Intent: The recognized instruction
//   - bool: false when the query is not a control command
func ParseIntent(query string) (*Intent, bool) {
	lower := strings.ToLower(query)

	var on bool
	switch {
	case containsAny(lower, offPhrases):
		on = false
	case containsAny(lower, onPhrases):
		on = true
	default:
		return nil, false
	}

	relay := 1
	for _, entry := range relayPhrases {
		if strings.Contains(lower, entry.phrase) {
			relay = entry.relay
			break
		}
	}

	return &Intent{Relay: relay, On: on}, true
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
