// Package main opens many activity feed connections against a running API
// and reports how many events each receives while it generates post votes.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the run results.
type Metrics struct {
	ConnectionsAttempted atomic.Int64
	ConnectionsSuccess   atomic.Int64
	ConnectionsFailed    atomic.Int64
	VotesSent            atomic.Int64
	EventsReceived       atomic.Int64
	Errors               atomic.Int64
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	host := flag.String("host", "localhost:5000", "API server host")
	email := flag.String("email", "gardener@example.com", "Account email")
	password := flag.String("password", "password123", "Account password")
	clients := flag.Int("clients", 50, "Number of concurrent feed connections")
	postID := flag.Uint("post", 1, "Post to vote on while connected")
	duration := flag.Duration("duration", 30*time.Second, "Run duration")
	flag.Parse()

	log.Printf("🌱 Activity feed load run against %s with %d clients for %v", *host, *clients, *duration)

	api := &apiClient{base: "http://" + *host + "/api/v1", http: &http.Client{Timeout: 5 * time.Second}}
	if err := api.login(*email, *password); err != nil {
		log.Fatalf("❌ Login failed: %v", err)
	}
	log.Printf("✅ Logged in as %s", *email)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var (
		metrics Metrics
		wg      sync.WaitGroup
		stop    = make(chan struct{})
	)
	feedURL := url.URL{Scheme: "ws", Host: *host, Path: "/api/v1/ws"}

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runFeed(api, feedURL, stop, &metrics)
		}()
		time.Sleep(20 * time.Millisecond)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		api.generateVotes(uint(*postID), stop, &metrics)
	}()

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Run duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stop)
	wg.Wait()
	printMetrics(&metrics)
}

func (a *apiClient) login(email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := a.http.Post(a.base+"/users/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if result.Token == "" {
		return errors.New("login response carried no token")
	}
	a.token = result.Token
	return nil
}

// generateVotes alternates upvotes and downvotes on postID, each of which
// publishes a post.voted event to the post's author.
func (a *apiClient) generateVotes(postID uint, stop <-chan struct{}, m *Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	directions := []string{"upvote", "downvote"}
	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/posts/%d/%s", a.base, postID, directions[i%2]), nil)
			req.Header.Set("Authorization", "Bearer "+a.token)
			resp, err := a.http.Do(req)
			if err != nil {
				m.Errors.Add(1)
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				m.Errors.Add(1)
				continue
			}
			m.VotesSent.Add(1)
		}
	}
}

// ticket fetches a fresh single-use websocket ticket.
func (a *apiClient) ticket() (string, error) {
	req, _ := http.NewRequest(http.MethodPost, a.base+"/ws/ticket", nil)
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Ticket string `json:"ticket"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.Ticket, nil
}

func runFeed(api *apiClient, feedURL url.URL, stop <-chan struct{}, m *Metrics) {
	m.ConnectionsAttempted.Add(1)

	// Get a fresh ticket for this connection
	ticket, err := api.ticket()
	if err != nil {
		m.ConnectionsFailed.Add(1)
		m.Errors.Add(1)
		return
	}
	feedURL.RawQuery = url.Values{"ticket": {ticket}}.Encode()

	c, resp, err := websocket.DefaultDialer.Dial(feedURL.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		m.ConnectionsFailed.Add(1)
		m.Errors.Add(1)
		return
	}
	defer func() { _ = c.Close() }()
	m.ConnectionsSuccess.Add(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
			m.EventsReceived.Add(1)
		}
	}()

	select {
	case <-stop:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
		m.Errors.Add(1)
	}
}

func printMetrics(m *Metrics) {
	log.Println("📊 Results")
	log.Println("==========")
	log.Printf("Connections Attempted: %d", m.ConnectionsAttempted.Load())
	log.Printf("Connections Successful: %d", m.ConnectionsSuccess.Load())
	log.Printf("Connections Failed: %d", m.ConnectionsFailed.Load())
	log.Printf("Votes Sent: %d", m.VotesSent.Load())
	log.Printf("Events Received: %d", m.EventsReceived.Load())
	log.Printf("Total Errors: %d", m.Errors.Load())
}
