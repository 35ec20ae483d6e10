package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamkiosk/internal/awards"
	"teamkiosk/internal/config"
	"teamkiosk/internal/kiosk"
	"teamkiosk/internal/queue"
	"teamkiosk/internal/roster"
	"teamkiosk/internal/store"
)

// Worker consumes attendance-changed messages and refreshes the cached
// leaderboard snapshot so kiosk displays read a warm copy.
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

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "kiosk:events")
	}

	repo := roster.NewRepository(db.Client)
	svc := kiosk.NewService(repo, cfg.Grace(), cfg.Location())
	boardCache := awards.NewCache(redisClient.Client, cfg.SnapshotTTL)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeEventAppended {
			continue
		}

		// Coalesce a quick burst of taps into one rebuild.
		drained := 1
	drain:
		for {
			select {
			case next, ok := <-messages:
				if !ok {
					break drain
				}
				if next.Type == queue.TypeEventAppended {
					drained++
				}
			case <-time.After(200 * time.Millisecond):
				break drain
			}
		}

		now := time.Now()
		rep, err := svc.BuildReport(ctx, now)
		if err != nil {
			log.Printf("report rebuild failed: %v", err)
			continue
		}
		snap := awards.BuildSnapshot(svc.Engine(rep), cfg.LeaderboardLimit, now)
		if err := boardCache.Set(ctx, snap); err != nil {
			log.Printf("snapshot cache write failed: %v", err)
			continue
		}
		log.Printf("leaderboards refreshed after %d event(s), %d completed meetings", drained, snap.CompletedCount)
	}

	log.Println("worker stopped")
}
