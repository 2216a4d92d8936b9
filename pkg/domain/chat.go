package domain

import (
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Sender struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ModelConfig struct {
	Model            string  `json:"model"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float32 `json:"temperature"`
	TopP             float32 `json:"top_p"`
	FrequencyPenalty float32 `json:"frequency_penalty"`
	PresencePenalty  float32 `json:"presence_penalty"`
	N                int     `json:"n"`
}

// SessionDefaults seeds a new ChatSession for a previously unseen sender.
type SessionDefaults struct {
	StartTemplate      string
	GoodbyeMessage     string
	AgentName          string
	VoiceTranscription bool
	AllowImages        bool
	Model              ModelConfig
}

// ChatSession is the full conversation state for one sender. Messages[0] is
// reserved for the current system prompt and is rewritten, never appended.
type ChatSession struct {
	Sender             Sender        `json:"sender"`
	Messages           []ChatMessage `json:"messages"`
	StartTemplate      string        `json:"start_template"`
	GoodbyeMessage     string        `json:"goodbye_message"`
	AgentName          string        `json:"agent_name"`
	Language           string        `json:"language,omitempty"`
	VoiceTranscription bool          `json:"voice_transcription"`
	AllowImages        bool          `json:"allow_images"`
	Model              ModelConfig   `json:"model"`
}

func NewChatSession(sender Sender, defaults SessionDefaults) *ChatSession {
	return &ChatSession{
		Sender:             sender,
		Messages:           []ChatMessage{{Role: RoleSystem, Content: defaults.StartTemplate}},
		StartTemplate:      defaults.StartTemplate,
		GoodbyeMessage:     defaults.GoodbyeMessage,
		AgentName:          defaults.AgentName,
		VoiceTranscription: defaults.VoiceTranscription,
		AllowImages:        defaults.AllowImages,
		Model:              defaults.Model,
	}
}

func (c *ChatSession) AddMessage(content, role string) {
	c.Messages = append(c.Messages, ChatMessage{Role: role, Content: content})
}

// RefreshSystemPrompt rewrites Messages[0] from the start template with the
// current sender name and date. Called once per request before any turn is
// appended.
func (c *ChatSession) RefreshSystemPrompt(now time.Time) {
	prompt := strings.NewReplacer(
		"{user}", c.Sender.Name,
		"{today}", now.Format("2006-01-02"),
		"{agent}", c.AgentName,
	).Replace(c.StartTemplate)

	if c.Language != "" {
		prompt += " Reply in " + c.Language + "."
	}

	c.Messages[0] = ChatMessage{Role: RoleSystem, Content: prompt}
}

func (c *ChatSession) FormatGoodbye() string {
	return strings.ReplaceAll(c.GoodbyeMessage, "{user}", c.Sender.Name)
}
