// Package main provides a load testing tool for the SocialConnect API. Each
// client holds its own session and refreshes it transparently.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"socialconnect/internal/session"

	"github.com/redis/go-redis/v9"
)

// Metrics tracks the test results
type Metrics struct {
	LoginsAttempted int64
	LoginsSuccess   int64
	Requests        int64
	Refreshes       int64
	Errors          int64
}

var metrics Metrics

type feedPage struct {
	Posts []struct {
		ID      uint `json:"id"`
		IsLiked bool `json:"is_liked"`
	} `json:"posts"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8375/api", "API base URL")
	login := flag.String("login", "socialconnect_root", "Test user email or username")
	password := flag.String("password", "", "Test user password")
	clients := flag.Int("clients", 20, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", time.Second, "Delay between requests per client")
	redisURL := flag.String("redis", "", "Persist sessions in Redis at this URL instead of memory")
	flag.Parse()

	if *password == "" {
		log.Fatal("❌ -password is required")
	}

	log.Printf("🚀 Starting API load test")
	log.Printf("Target: %s", *baseURL)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	store, err := newStore(*redisURL)
	if err != nil {
		log.Fatalf("❌ Session store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-interrupt:
			log.Println("🛑 Interrupted by user")
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		client := session.NewClient(*baseURL, store, fmt.Sprintf("client-%d", i))
		go runClient(ctx, client, *login, *password, *interval, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger logins to stay under the auth rate limit
	}

	<-ctx.Done()
	log.Println("Waiting for clients to finish...")
	wg.Wait()

	printMetrics()
}

func newStore(redisURL string) (*session.Store, error) {
	if redisURL == "" {
		return session.NewStore(session.NewMemoryKV(), "loadtest:"), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return session.NewStore(session.NewRedisKV(redis.NewClient(opts)), "loadtest:"), nil
}

func runClient(ctx context.Context, client *session.Client, login, password string, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.LoginsAttempted, 1)

	sess, err := client.Login(ctx, login, password)
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	atomic.AddInt64(&metrics.LoginsSuccess, 1)
	defer func() {
		// The run context is already done; logout gets a fresh deadline.
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Logout(logoutCtx, sess)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := step(ctx, client, sess); err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return
				}
				atomic.AddInt64(&metrics.Errors, 1)
				if errors.Is(err, session.ErrExpired) {
					return
				}
			}
		}
	}
}

// step reads the feed and toggles a like on the first post.
func step(ctx context.Context, client *session.Client, sess *session.Session) error {
	before := sess.AccessToken
	defer func() {
		if sess.AccessToken != before && sess.AccessToken != "" {
			atomic.AddInt64(&metrics.Refreshes, 1)
		}
	}()

	var page feedPage
	atomic.AddInt64(&metrics.Requests, 1)
	if err := client.Do(ctx, sess, http.MethodGet, "/posts?limit=10", nil, &page); err != nil {
		return err
	}
	if len(page.Posts) == 0 {
		return nil
	}

	post := page.Posts[0]
	method := http.MethodPost
	if post.IsLiked {
		method = http.MethodDelete
	}
	atomic.AddInt64(&metrics.Requests, 1)
	err := client.Do(ctx, sess, method, fmt.Sprintf("/posts/%d/like", post.ID), nil, nil)
	var apiErr *session.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		// Another client sharing the account liked it first.
		return nil
	}
	return err
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Logins Attempted: %d", atomic.LoadInt64(&metrics.LoginsAttempted))
	log.Printf("Logins Successful: %d", atomic.LoadInt64(&metrics.LoginsSuccess))
	log.Printf("Requests Sent: %d", atomic.LoadInt64(&metrics.Requests))
	log.Printf("Token Refreshes: %d", atomic.LoadInt64(&metrics.Refreshes))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
