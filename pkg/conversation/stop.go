package conversation

import "strings"

// StopPredicate decides, after a full turn, whether the conversation has
// reached a natural resolution. It sees the persona's latest message and
// the agent's latest reply for the turn just finished.
type StopPredicate func(personaMessage, agentReply string, turn int) bool

// closingPhrases are the markers a satisfied client tends to produce.
var closingPhrases = []string{
	"thank you so much",
	"thanks, that answers",
	"that answers my question",
	"that answers everything",
	"that's all i needed",
	"that is all i needed",
	"i have no more questions",
	"no further questions",
	"goodbye",
}

// DefaultStop reports resolution when the persona signals it is done. It is
// a heuristic over the persona's wording, not a structural contract; callers
// wanting stricter semantics inject their own predicate.
func DefaultStop(personaMessage, agentReply string, turn int) bool {
	if turn < 2 {
		return false
	}
	lower := strings.ToLower(personaMessage)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
