package services

import (
	"context"
	"log/slog"

	"chatgpt-whatsapp-bot/pkg/logger"
)

type ImageURLGenerator interface {
	GenerateImageURL(ctx context.Context, prompt string) (string, error)
}

type MediaSender interface {
	SendMedia(ctx context.Context, mediaURL, to string) error
	SendText(ctx context.Context, text, to, onFailure string) (string, error)
}

type imageService struct {
	generator ImageURLGenerator
	sender    MediaSender
}

func NewImageService(generator ImageURLGenerator, sender MediaSender) *imageService {
	return &imageService{
		generator: generator,
		sender:    sender,
	}
}

// GenerateAndSend renders the prompt and delivers the image as an outbound
// media message. The reply carrying the directive has already been sent, so
// failures here only produce a follow-up apology.
func (s *imageService) GenerateAndSend(ctx context.Context, prompt, to string) {
	slog.InfoContext(ctx, "Starting image generation", "prompt", prompt)

	imageURL, err := s.generator.GenerateImageURL(ctx, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "generating image", logger.Err(err))
		s.sendFailure(ctx, to)
		return
	}

	if err := s.sender.SendMedia(ctx, imageURL, to); err != nil {
		slog.ErrorContext(ctx, "sending image", logger.Err(err))
		s.sendFailure(ctx, to)
		return
	}

	slog.InfoContext(ctx, "Image delivered", "to", to)
}

func (s *imageService) sendFailure(ctx context.Context, to string) {
	if _, err := s.sender.SendText(ctx, "Sorry, I couldn't create that image.", to, ""); err != nil {
		slog.ErrorContext(ctx, "sending image failure notice", logger.Err(err))
	}
}
