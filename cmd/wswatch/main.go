// Command wswatch logs in to a running API, opens the notification
// websocket and prints every event it receives.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	base := flag.String("url", "http://localhost:8375", "API base URL")
	username := flag.String("username", "demouser", "Account to log in as")
	password := flag.String("password", "password", "Account password")
	token := flag.String("token", "", "Use this bearer token instead of logging in")
	flag.Parse()

	tok := *token
	if tok == "" {
		var err error
		if tok, err = login(*base, *username, *password); err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}

	wsURL, err := websocketURL(*base, tok)
	if err != nil {
		log.Fatalf("Invalid URL: %v", err)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("Dial failed: %v (HTTP %d)", err, resp.StatusCode)
		}
		log.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	log.Printf("Connected to %s", strings.SplitN(wsURL, "?", 2)[0])

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Connection closed: %v", err)
				return
			}
			printEvent(msg)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func login(base, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(strings.TrimRight(base, "/")+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, out.Error)
	}
	return out.Token, nil
}

func websocketURL(base, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func printEvent(raw []byte) {
	var evt struct {
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Type == "" {
		fmt.Println(string(raw))
		return
	}
	fmt.Printf("%s %-22s %s\n", evt.Timestamp.Format(time.TimeOnly), evt.Type, evt.Payload)
}
