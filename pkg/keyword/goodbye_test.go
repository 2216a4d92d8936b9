package keyword

import "testing"

func TestIsConversationEnd(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"bye", true},
		{"Bye", true},
		{"  goodbye  ", true},
		{"Goodbye!", true},
		{"see you", true},
		{"ciao", true},
		{"goodbye my friend", false},
		{"tell me about goodbyes", false},
		{"hello", false},
		{"", false},
	}

	for _, test := range tests {
		if got := IsConversationEnd(test.text); got != test.expected {
			t.Errorf("IsConversationEnd(%q) = %v, want %v", test.text, got, test.expected)
		}
	}
}
