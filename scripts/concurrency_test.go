//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the circulation API.
//
// Usage:
//
//	SCOPE_TOKEN=<token> go run ./scripts/concurrency_test.go <book_id> [borrowers]
//
// What it does:
//  1. Fires N goroutines (default 8), each issuing the same book to a distinct
//     random student, all released simultaneously.
//  2. Tallies issued vs. "no copies available" vs. other failures.
//  3. With available_copies = C before the run, exactly C requests must be
//     issued and the rest must be refused as unavailable.
//
// Prerequisites:
//   - Server must be running.
//   - Run scripts/seed.go first (or otherwise obtain a book id and scope token).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultServerAddr = "http://localhost:8080"

type issueResult struct {
	Borrower   string
	StatusCode int
	Message    string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}
	token := os.Getenv("SCOPE_TOKEN")
	if token == "" {
		log.Fatal("SCOPE_TOKEN env is required (run scripts/seed.go to mint one)")
	}

	args := os.Args[1:]
	if len(args) < 1 {
		log.Fatal("Usage: SCOPE_TOKEN=<token> go run ./scripts/concurrency_test.go <book_id> [borrowers]")
	}
	bookID := args[0]
	borrowers := 8
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			log.Fatalf("invalid borrower count %q", args[1])
		}
		borrowers = n
	}

	fmt.Printf("=== Circulation Concurrency Test ===\n")
	fmt.Printf("Server    : %s\n", serverAddr)
	fmt.Printf("Book      : %s\n", bookID)
	fmt.Printf("Borrowers : %d\n\n", borrowers)

	results := make([]issueResult, borrowers)
	var wg sync.WaitGroup

	// Fire all goroutines simultaneously using a barrier.
	start := make(chan struct{})

	for i := 0; i < borrowers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			results[idx] = attemptIssue(serverAddr, token, bookID, uuid.NewString())
		}(i)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var issued, unavailable, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] borrower=%-38s err=%v\n", r.Borrower, r.Err)
		case r.StatusCode == http.StatusCreated:
			issued++
			fmt.Printf("  [ISSU] borrower=%-38s status=%d\n", r.Borrower, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			unavailable++
			fmt.Printf("  [FULL] borrower=%-38s status=%d msg=%q\n", r.Borrower, r.StatusCode, r.Message)
		default:
			failures++
			fmt.Printf("  [????] borrower=%-38s status=%d msg=%q\n", r.Borrower, r.StatusCode, r.Message)
		}
	}

	fmt.Printf("\nIssued: %d  Unavailable: %d  Failures: %d\n", issued, unavailable, failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func attemptIssue(serverAddr, token, bookID, studentID string) issueResult {
	body, _ := json.Marshal(map[string]string{
		"book_id":       bookID,
		"borrower_type": "STUDENT",
		"borrower_id":   studentID,
	})

	req, err := http.NewRequest(http.MethodPost, serverAddr+"/api/library/issue", bytes.NewReader(body))
	if err != nil {
		return issueResult{Borrower: studentID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Scope-Token", token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return issueResult{Borrower: studentID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &envelope)

	return issueResult{
		Borrower:   studentID,
		StatusCode: resp.StatusCode,
		Message:    envelope.Message,
	}
}
