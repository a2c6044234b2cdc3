package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/audit"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/config"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/queue"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/store"
)

// Worker drains the audit queue into the security_events table. The api
// process publishes fire-and-forget; this is the durable half of the
// trail.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	// A memory queue lives inside the api process; a separate worker
	// would consume its own empty copy and persist nothing.
	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory is process-local to the api; run the worker against the redis backend")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	q := queue.NewRedisQueue(redisClient.Client, "placement:audit")

	repo := audit.NewRepo(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for events...")
	for msg := range messages {
		if msg.Type != "audit" {
			continue
		}

		var evt audit.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("drop malformed audit event: %v", err)
			continue
		}

		if err := repo.Insert(ctx, evt); err != nil {
			log.Printf("persist audit event %s failed: %v", evt.ID, err)
			continue
		}
		log.Printf("audit event %s (%s) persisted", evt.ID, evt.Kind)
	}

	log.Println("audit worker stopped")
}
