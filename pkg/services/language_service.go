package services

import (
	"context"
	"log/slog"

	"chatgpt-whatsapp-bot/pkg/domain"
	"chatgpt-whatsapp-bot/pkg/logger"
)

type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text, model string) (string, error)
}

type languageService struct {
	detector LanguageDetector
}

func NewLanguageService(detector LanguageDetector) *languageService {
	return &languageService{detector: detector}
}

// EnsureLanguage runs language detection on the first real turn and records
// the result on the session so every later system prompt carries it.
// Detection failure is soft: the session language stays unset.
func (s *languageService) EnsureLanguage(ctx context.Context, session *domain.ChatSession, text string) {
	lang, err := s.detector.DetectLanguage(ctx, text, session.Model.Model)
	if err != nil {
		slog.WarnContext(ctx, "detecting language", logger.Err(err))
		return
	}
	if lang == "" {
		return
	}

	slog.InfoContext(ctx, "Detected user language", "language", lang)
	session.Language = lang
}
