package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"

	"chatgpt-whatsapp-bot/pkg/api/handler"
	"chatgpt-whatsapp-bot/pkg/auth"
	"chatgpt-whatsapp-bot/pkg/database"
	"chatgpt-whatsapp-bot/pkg/domain"
	"chatgpt-whatsapp-bot/pkg/logger"
	"chatgpt-whatsapp-bot/pkg/openai"
	"chatgpt-whatsapp-bot/pkg/repository"
	"chatgpt-whatsapp-bot/pkg/services"
	"chatgpt-whatsapp-bot/pkg/twilio"
	"chatgpt-whatsapp-bot/pkg/workers"
)

type Config struct {
	OpenAIToken   string `env:"OPENAI_API_KEY,required"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	TwilioAccountSID        string `env:"TWILIO_ACCOUNT_SID,required"`
	TwilioAuthToken         string `env:"TWILIO_AUTH_TOKEN,required"`
	TwilioWhatsAppNumber    string `env:"TWILIO_WHATSAPP_NUMBER" envDefault:"+14155238886"`
	ValidateTwilioSignature bool   `env:"VALIDATE_TWILIO_SIGNATURE" envDefault:"true"`

	ChatModel         string  `env:"CHAT_MODEL" envDefault:"gpt-3.5-turbo"`
	VisionModel       string  `env:"VISION_MODEL" envDefault:"gpt-4o-mini"`
	ChatStartTemplate string  `env:"CHAT_START_TEMPLATE"`
	AgentName         string  `env:"AGENT_NAME"`
	MaxTokens         int     `env:"MAX_TOKENS" envDefault:"1000"`
	Temperature       float32 `env:"TEMPERATURE" envDefault:"1.2"`
	TopP              float32 `env:"TOP_P" envDefault:"1"`
	FrequencyPenalty  float32 `env:"FREQUENCY_PENALTY" envDefault:"0.3"`
	PresencePenalty   float32 `env:"PRESENCE_PENALTY" envDefault:"0.1"`

	Port       int           `env:"PORT" envDefault:"5001"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"0"`
	PgURL      string        `env:"DATABASE_URL"`
	PgHost     string        `env:"DB_HOST"`
}

const defaultStartTemplate = "You are a friendly WhatsApp assistant. " +
	"You are talking to {user}. Today is {today}. Keep replies short and helpful. " +
	`If the user asks you to draw or generate a picture, include [img:"<image prompt>"] in your reply.`

const defaultGoodbyeMessage = "Goodbye! I'll be here if you need me."

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	workerGroup, err := setupWorkers()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Start(ctx)
}

func setupWorkers() (workers.Group, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	twilioClient, err := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber)
	if err != nil {
		return nil, fmt.Errorf("creating twilio client: %w", err)
	}

	openAIClient, err := openai.NewClient(cfg.OpenAIToken, cfg.OpenAIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating open ai client: %w", err)
	}

	sessionRepository, err := setupSessionRepository(cfg)
	if err != nil {
		return nil, err
	}

	defaults := domain.SessionDefaults{
		StartTemplate:      loadStartTemplate(cfg.ChatStartTemplate),
		GoodbyeMessage:     defaultGoodbyeMessage,
		AgentName:          cfg.AgentName,
		VoiceTranscription: true,
		AllowImages:        true,
		Model: domain.ModelConfig{
			Model:            cfg.ChatModel,
			MaxTokens:        cfg.MaxTokens,
			Temperature:      cfg.Temperature,
			TopP:             cfg.TopP,
			FrequencyPenalty: cfg.FrequencyPenalty,
			PresencePenalty:  cfg.PresencePenalty,
			N:                1,
		},
	}

	chatService := services.NewChatService(
		twilioClient,
		openAIClient,
		sessionRepository,
		services.NewMediaService(twilioClient, openAIClient, openAIClient, cfg.VisionModel),
		services.NewLanguageService(openAIClient),
		services.NewImageService(openAIClient, twilioClient),
		defaults,
	)

	validator := auth.NewValidator(cfg.TwilioAuthToken, cfg.ValidateTwilioSignature)
	whatsAppHandler := handler.NewWhatsApp(chatService, validator)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /whatsapp/reply", whatsAppHandler.Reply)
	mux.HandleFunc("POST /whatsapp/status", whatsAppHandler.Status)

	var workerGroup workers.Group

	worker, err := workers.NewHTTPServer(fmt.Sprintf(":%d", cfg.Port), mux)
	if err != nil {
		return nil, fmt.Errorf("creating http server: %w", err)
	}
	workerGroup = append(workerGroup, worker)

	return workerGroup, nil
}

func setupSessionRepository(cfg Config) (services.SessionRepository, error) {
	if cfg.PgURL == "" && cfg.PgHost == "" {
		slog.Info("no database configured, using in-memory session store", "ttl", cfg.SessionTTL)
		return repository.NewSessionRepository(cfg.SessionTTL), nil
	}

	db, err := database.NewPostgres(cfg.PgURL, cfg.PgHost)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}
	return repository.NewPgSessionRepository(db), nil
}

// loadStartTemplate reads the template file the path points at, falling back
// to the built-in default when unset or missing.
func loadStartTemplate(path string) string {
	if path == "" {
		return defaultStartTemplate
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("reading start template, using default", "path", path, logger.Err(err))
		return defaultStartTemplate
	}
	return string(data)
}
