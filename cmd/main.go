package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"recitation-gateway/internal/app"
	"recitation-gateway/internal/config"
	"recitation-gateway/internal/events"
	"recitation-gateway/internal/gateway"
	"recitation-gateway/internal/observability"
	"recitation-gateway/internal/provider/assemblyai"
	"recitation-gateway/internal/provider/openai"
	"recitation-gateway/internal/transcription"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	publisher := events.New(&events.Config{
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicScored:    cfg.Kafka.TopicScored,
		Principal:      cfg.Kafka.Principal,
		Enabled:        cfg.Kafka.Enabled,
	})
	defer publisher.Close()

	openaiClient := openai.New(openai.Config{
		APIKey:        cfg.Upstream.OpenAIAPIKey,
		BaseURL:       cfg.Upstream.OpenAIBaseURL,
		WhisperModel:  cfg.Transcription.WhisperModel,
		WhisperPrompt: cfg.Transcription.WhisperPrompt,
		LanguageCode:  cfg.Transcription.LanguageCode,
		TTSModel:      cfg.Transcription.TTSModel,
		TTSVoice:      cfg.Transcription.TTSVoice,
		ChatModel:     cfg.Transcription.ChatModel,
	})

	assemblyClient := assemblyai.New(assemblyai.Config{
		APIKey:       cfg.Upstream.AssemblyAIAPIKey,
		BaseURL:      cfg.Upstream.AssemblyAIBaseURL,
		LanguageCode: cfg.Transcription.LanguageCode,
		SpeechModel:  cfg.Transcription.SpeechModel,
	})
	asyncClient := transcription.NewClient(
		assemblyClient,
		cfg.Transcription.PollInterval,
		cfg.Transcription.MaxPollAttempts,
	)

	handlers := gateway.NewHandlers(cfg, openaiClient, asyncClient, publisher)
	router := gateway.NewRouter(cfg, handlers)

	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	obsServer := observability.NewServer(":" + cfg.Service.ObsPort)
	obsServer.Start()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Gateway server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Gateway shutdown error")
	}
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}
	application.Shutdown()
}
