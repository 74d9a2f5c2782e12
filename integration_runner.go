package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Manual end-to-end check against a locally running server: signs up a
// user, creates an organization and a project, opens the board
// websocket and verifies that creating a ticket produces a live event.

const baseURL = "http://localhost:8080"

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func main() {
	fmt.Println("=== TrackHub Backend Integration Test ===")

	// 1. Signup (or login when the user already exists)
	fmt.Println("\n1. Authenticating...")
	email := fmt.Sprintf("runner+%d@trackhub.local", time.Now().Unix())
	var auth authResponse
	postJSON("/v1/auth/signup", map[string]string{
		"email":    email,
		"name":     "Integration Runner",
		"password": "runner-pass-123",
	}, "", &auth)
	if auth.Token == "" {
		log.Fatal("no token in signup response")
	}
	fmt.Println("✓ Authenticated as", email)

	// 2. Create organization
	fmt.Println("\n2. Creating organization...")
	var org struct {
		ID string `json:"id"`
	}
	postJSON("/v1/organizations", map[string]string{
		"name":          "Runner Org",
		"slug":          fmt.Sprintf("runner-%d", time.Now().Unix()),
		"ticket_prefix": "RUN",
	}, auth.Token, &org)
	fmt.Println("✓ Organization", org.ID)

	// 3. Create project
	fmt.Println("\n3. Creating project...")
	var project struct {
		ID string `json:"id"`
	}
	postJSON("/v1/organizations/"+org.ID+"/projects", map[string]string{
		"name": "Runner Project",
	}, auth.Token, &project)
	fmt.Println("✓ Project", project.ID)

	// 4. Open the board websocket
	fmt.Println("\n4. Connecting board websocket...")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+auth.Token)
	conn, _, err := websocket.DefaultDialer.Dial(
		"ws://localhost:8080/v1/organizations/"+org.ID+"/ws", header)
	if err != nil {
		log.Fatal("Dial error:", err)
	}
	defer conn.Close()
	fmt.Println("✓ WebSocket connected")

	// 5. Create a ticket and wait for the broadcast
	fmt.Println("\n5. Creating ticket...")
	var ticket struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	postJSON("/v1/organizations/"+org.ID+"/projects/"+project.ID+"/tickets", map[string]string{
		"title":    "Runner smoke ticket",
		"priority": "high",
	}, auth.Token, &ticket)
	fmt.Println("✓ Ticket", ticket.Key)

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Fatal("No board event received:", err)
	}
	fmt.Println("✓ Board event:", string(data))

	fmt.Println("\n=== All checks passed ===")
}

func postJSON(path string, body any, token string, out any) {
	payload, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Fatalf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("POST %s: decode: %v", path, err)
		}
	}
}
