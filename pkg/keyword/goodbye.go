package keyword

import "strings"

var goodbyeKeywords = []string{"bye", "bye bye", "goodbye", "see you", "adios", "ciao"}

// IsConversationEnd reports whether the message is an end-of-conversation
// signal. The whole message must be the signal so replies that merely mention
// a farewell keep the conversation going.
func IsConversationEnd(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimRight(text, "!. ")
	for _, kw := range goodbyeKeywords {
		if text == kw {
			return true
		}
	}
	return false
}
