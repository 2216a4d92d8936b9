package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"chatgpt-whatsapp-bot/pkg/domain"
	"chatgpt-whatsapp-bot/pkg/logger"
)

type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio io.Reader, filename string) (string, error)
}

type ImageCaptioner interface {
	CaptionImage(ctx context.Context, image []byte, contentType, model string) (string, error)
}

type mediaService struct {
	downloader  MediaDownloader
	transcriber Transcriber
	captioner   ImageCaptioner
	visionModel string
}

func NewMediaService(downloader MediaDownloader, transcriber Transcriber, captioner ImageCaptioner, visionModel string) *mediaService {
	return &mediaService{
		downloader:  downloader,
		transcriber: transcriber,
		captioner:   captioner,
		visionModel: visionModel,
	}
}

// Process turns an inbound message into plain text: voice notes are
// transcribed, pictures are captioned. Media failures are soft; the body
// text, possibly empty, is what remains.
func (s *mediaService) Process(ctx context.Context, msg domain.InboundMessage, session *domain.ChatSession) string {
	switch {
	case msg.IsVoice() && session.VoiceTranscription:
		return s.processVoice(ctx, msg)
	case msg.IsImage():
		return s.processImage(ctx, msg)
	}
	return msg.Body
}

func (s *mediaService) processVoice(ctx context.Context, msg domain.InboundMessage) string {
	data, err := s.downloader.DownloadMedia(ctx, msg.MediaURL)
	if err != nil {
		slog.ErrorContext(ctx, "downloading voice note", logger.Err(err))
		return msg.Body
	}

	text, err := s.transcriber.TranscribeAudio(ctx, bytes.NewReader(data), audioFileName(msg.MediaContentType))
	if err != nil {
		slog.ErrorContext(ctx, "transcribing voice note", logger.Err(err))
		return msg.Body
	}

	slog.InfoContext(ctx, "Voice note transcribed", "textLen", len(text))

	if msg.Body == "" {
		return text
	}
	return msg.Body + "\n" + text
}

func (s *mediaService) processImage(ctx context.Context, msg domain.InboundMessage) string {
	data, err := s.downloader.DownloadMedia(ctx, msg.MediaURL)
	if err != nil {
		slog.ErrorContext(ctx, "downloading image", logger.Err(err))
		return msg.Body
	}

	caption, err := s.captioner.CaptionImage(ctx, data, msg.MediaContentType, s.visionModel)
	if err != nil {
		slog.ErrorContext(ctx, "captioning image", logger.Err(err))
		return msg.Body
	}

	return strings.TrimSpace(msg.Body + "\n[Image attached: " + caption + "]")
}

// The transcription API picks its decoder from the file extension.
func audioFileName(contentType string) string {
	switch {
	case strings.Contains(contentType, "ogg"), strings.Contains(contentType, "opus"):
		return "voice.ogg"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "voice.mp3"
	case strings.Contains(contentType, "wav"):
		return "voice.wav"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return "voice.m4a"
	}
	return "voice.ogg"
}
