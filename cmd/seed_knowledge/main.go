package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ytcbot/config"
	"ytcbot/internal/adapters/knowledge"
	"ytcbot/internal/adapters/logger"
)

var (
	file   = flag.String("file", "", "pattern seed YAML (defaults to KNOWLEDGE_FILE)")
	prefix = flag.String("prefix", "ytc", "redis key prefix")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if *file == "" {
		*file = cfg.KnowledgeFile
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	patterns, err := knowledge.LoadSeed(*file)
	if err != nil {
		log.Fatalf("Error loading seed: %v", err)
	}

	store, err := knowledge.NewRedisStore(knowledge.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   *prefix,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize redis store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	keys, err := store.Seed(ctx, patterns)
	if err != nil {
		log.Fatalf("Error seeding redis: %v", err)
	}
	fmt.Printf("Seeded %d patterns into %d keys at %s\n", len(patterns), keys, cfg.RedisAddr)
}
