package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"chatgpt-whatsapp-bot/pkg/domain"
)

type client struct {
	api *goopenai.Client
}

func NewClient(token, baseURL string) (*client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	cfg := goopenai.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &client{api: goopenai.NewClientWithConfig(cfg)}, nil
}

// CreateChatCompletion sends the full message history and returns the first
// choice's text, trimmed of surrounding whitespace.
func (c *client) CreateChatCompletion(ctx context.Context, messages []domain.ChatMessage, cfg domain.ModelConfig) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:            cfg.Model,
		Messages:         toAPIMessages(messages),
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		N:                cfg.N,
	})
	if err != nil {
		return "", &domain.CompletionError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.CompletionError{Err: errors.New("no choices in response")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var trailingArrowRe = regexp.MustCompile(` ->.*`)

// DetectLanguage asks the model to name the language of a text in a single
// word, using the few-shot prompt the language bootstrap expects.
func (c *client) DetectLanguage(ctx context.Context, text, model string) (string, error) {
	prompt := "You are a language recognition program. You can only output a single word saying the language of a given text." +
		` Some "text" -> reply example outputs are: ` +
		`"Hello world" -> english, "Bonjour le monde" -> french, "Hola mundo" -> spanish, "Hallo Welt" -> german` +
		"\n---\n" + text + " ->"

	result, err := c.CreateChatCompletion(ctx,
		[]domain.ChatMessage{{Role: domain.RoleSystem, Content: prompt}},
		domain.ModelConfig{Model: model, MaxTokens: 10, N: 1},
	)
	if err != nil {
		return "", err
	}

	lang := strings.ToLower(strings.TrimSpace(trailingArrowRe.ReplaceAllString(result, "")))
	if fields := strings.Fields(lang); len(fields) > 0 {
		lang = fields[0]
	}
	return lang, nil
}

// TranscribeAudio runs whisper over a voice note. The filename only carries
// the format extension the API uses to pick a decoder.
func (c *client) TranscribeAudio(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("creating transcription: %w", err)
	}
	return resp.Text, nil
}

// CaptionImage describes an inbound picture so the text flow can continue.
func (c *client) CaptionImage(ctx context.Context, image []byte, contentType, model string) (string, error) {
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 300,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: "Describe this image in one or two sentences."},
				{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("creating image caption: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateImageURL renders a prompt with DALL·E and returns the hosted image
// URL so the messaging provider can fetch it.
func (c *client) GenerateImageURL(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Size:           goopenai.CreateImageSize512x512,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
		N:              1,
	})
	if err != nil {
		return "", fmt.Errorf("creating image: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("no image data in response")
	}
	return resp.Data[0].URL, nil
}

func toAPIMessages(messages []domain.ChatMessage) []goopenai.ChatCompletionMessage {
	apiMessages := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		apiMessages = append(apiMessages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return apiMessages
}
