package main

import (
	"LayoutGolang/internal/config"
	"LayoutGolang/pkg/flux"
	"LayoutGolang/pkg/log"
	"LayoutGolang/pkg/prompt"
	"LayoutGolang/pkg/redis"
	"LayoutGolang/pkg/vision"
	"github.com/joho/godotenv"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	fluxClient := flux.New()
	visionEngine := vision.New()

	promptConfigPath := os.Getenv("PROMPT_CONFIG_PATH")
	if promptConfigPath == "" {
		promptConfigPath = "config/prompt.toml"
	}
	promptConfig, err := prompt.Load(promptConfigPath)
	if err != nil {
		logger.Fatalf("Error loading prompt config: %v", err)
	}

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithFluxClient(fluxClient),
		config.WithVisionEngine(visionEngine),
		config.WithPromptConfig(promptConfig),
		config.WithUtils(),
	}

	if os.Getenv("GEMINI_API_KEY") != "" {
		options = append(options, config.WithGeminiClient())
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
}
