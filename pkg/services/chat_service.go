package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"chatgpt-whatsapp-bot/pkg/domain"
	"chatgpt-whatsapp-bot/pkg/keyword"
	"chatgpt-whatsapp-bot/pkg/logger"
)

const apologyText = "Sorry, I didn't understand that. Please try again."

type MessageClient interface {
	ParseInbound(values url.Values) domain.InboundMessage
	SendText(ctx context.Context, text, to, onFailure string) (string, error)
}

type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, messages []domain.ChatMessage, cfg domain.ModelConfig) (string, error)
}

type SessionRepository interface {
	GetOrCreate(ctx context.Context, sender domain.Sender, defaults domain.SessionDefaults) (*domain.ChatSession, error)
	Save(ctx context.Context, session *domain.ChatSession) error
}

type MediaProcessor interface {
	Process(ctx context.Context, msg domain.InboundMessage, session *domain.ChatSession) string
}

type LanguageBootstrapper interface {
	EnsureLanguage(ctx context.Context, session *domain.ChatSession, text string)
}

type ImageGenerator interface {
	GenerateAndSend(ctx context.Context, prompt, to string)
}

type chatService struct {
	messageClient MessageClient
	completions   CompletionClient
	sessions      SessionRepository
	media         MediaProcessor
	language      LanguageBootstrapper
	images        ImageGenerator
	defaults      domain.SessionDefaults

	mu          sync.Mutex
	senderLocks map[string]*sync.Mutex
}

func NewChatService(
	messageClient MessageClient,
	completions CompletionClient,
	sessions SessionRepository,
	media MediaProcessor,
	language LanguageBootstrapper,
	images ImageGenerator,
	defaults domain.SessionDefaults,
) *chatService {
	return &chatService{
		messageClient: messageClient,
		completions:   completions,
		sessions:      sessions,
		media:         media,
		language:      language,
		images:        images,
		defaults:      defaults,
		senderLocks:   make(map[string]*sync.Mutex),
	}
}

// HandleIncoming runs one webhook payload through the full conversation
// cycle: resolve the session, refresh its system prompt, normalize the
// message, short-circuit empty and goodbye turns, generate and deliver a
// reply, run the image side-channel, and persist. Failures are reported to
// the user over the chat channel; the returned error is for logging only.
func (c *chatService) HandleIncoming(ctx context.Context, values url.Values) error {
	name, _ := lo.Coalesce(values.Get("ProfileName"), values.Get("From"))
	sender := domain.Sender{
		PhoneNumber: values.Get("From"),
		Name:        name,
	}
	if sender.PhoneNumber == "" {
		return errors.New("payload has no sender")
	}

	// Rapid double-sends from one number race on read-modify-write of the
	// session, so the whole cycle is serialized per sender key.
	unlock := c.lockSender(sender.PhoneNumber)
	defer unlock()

	session, err := c.sessions.GetOrCreate(ctx, sender, c.defaults)
	if err != nil {
		return fmt.Errorf("fetching session: %w", err)
	}

	session.RefreshSystemPrompt(time.Now())

	inbound := c.messageClient.ParseInbound(values)
	text := c.media.Process(ctx, inbound, session)

	if strings.TrimSpace(text) == "" {
		_, err := c.messageClient.SendText(ctx, apologyText, sender.PhoneNumber, "")
		return err
	}

	if keyword.IsConversationEnd(text) {
		_, err := c.messageClient.SendText(ctx, session.FormatGoodbye(), sender.PhoneNumber, "")
		return err
	}

	// Only the system prompt exists: this is the first real turn.
	if len(session.Messages) == 1 {
		c.language.EnsureLanguage(ctx, session, text)
		session.RefreshSystemPrompt(time.Now())
	}

	session.AddMessage(text, domain.RoleUser)

	slog.InfoContext(ctx, "Calling completion API", "model", session.Model.Model, "messagesCount", len(session.Messages))

	reply, err := c.completions.CreateChatCompletion(ctx, session.Messages, session.Model)
	if err != nil {
		c.sendApology(ctx, sender.PhoneNumber)
		return fmt.Errorf("creating chat completion: %w", err)
	}

	reply, imagePrompt := keyword.ExtractImagePrompt(reply)

	delivered, err := c.messageClient.SendText(ctx, reply, sender.PhoneNumber, apologyText)
	if err != nil {
		return fmt.Errorf("delivering reply: %w", err)
	}

	session.AddMessage(delivered, domain.RoleAssistant)

	if imagePrompt != "" && session.AllowImages {
		session.AddMessage(keyword.ImageDirective(imagePrompt), domain.RoleSystem)
		c.images.GenerateAndSend(ctx, imagePrompt, sender.PhoneNumber)
	}

	if err := c.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	slog.InfoContext(ctx, "Conversation turn complete", "sender", sender.PhoneNumber, "messagesCount", len(session.Messages))
	return nil
}

func (c *chatService) sendApology(ctx context.Context, to string) {
	if _, err := c.messageClient.SendText(ctx, apologyText, to, ""); err != nil {
		slog.ErrorContext(ctx, "sending apology", "to", to, logger.Err(err))
	}
}

func (c *chatService) lockSender(phoneNumber string) func() {
	c.mu.Lock()
	m, ok := c.senderLocks[phoneNumber]
	if !ok {
		m = &sync.Mutex{}
		c.senderLocks[phoneNumber] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m.Unlock
}
