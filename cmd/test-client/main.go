// Package main provides a standalone CLI tool for sending test emails
// through the email gateway HTTP API and following their delivery status.
//
// Usage:
//
//	test-client --to recipient@example.com --subject "Test" --body "Hello"
//	test-client --url http://localhost:3000 --to a@example.com --count 10 --rate 5 --wait
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type config struct {
	url          string
	to           stringSlice
	subject      string
	body         string
	html         bool
	count        int
	rate         float64
	wait         bool
	pollInterval time.Duration
	timeout      time.Duration
}

// stringSlice implements flag.Value for repeatable --to flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

type recipient struct {
	Address string `json:"address"`
}

type sendRequest struct {
	Recipients struct {
		To []recipient `json:"to"`
	} `json:"recipients"`
	Subject string `json:"subject"`
	Content struct {
		PlainText string `json:"plainText,omitempty"`
		HTML      string `json:"html,omitempty"`
	} `json:"content"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func main() {
	cfg := parseFlags()

	if len(cfg.to) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one --to is required")
		flag.Usage()
		os.Exit(2)
	}

	fmt.Printf("Email Gateway Test Client\n")
	fmt.Printf("  API:      %s\n", cfg.url)
	fmt.Printf("  To:       %s\n", strings.Join(cfg.to, ", "))
	fmt.Printf("  Count:    %d\n", cfg.count)
	if cfg.count > 1 {
		fmt.Printf("  Rate:     %.1f emails/sec\n", cfg.rate)
	}
	fmt.Println()

	client := &http.Client{Timeout: cfg.timeout}

	var (
		successCount int
		failCount    int
		totalSend    time.Duration
		handles      []string
	)

	interval := time.Duration(0)
	if cfg.count > 1 && cfg.rate > 0 {
		interval = time.Duration(float64(time.Second) / cfg.rate)
	}

	for i := 0; i < cfg.count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}

		seq := i + 1
		subject := cfg.subject
		body := cfg.body
		if cfg.count > 1 {
			subject = fmt.Sprintf("%s [%d/%d]", cfg.subject, seq, cfg.count)
			body = fmt.Sprintf("%s\n\n-- Email %d of %d --", cfg.body, seq, cfg.count)
		}

		sendStart := time.Now()
		handle, err := sendEmail(client, cfg, subject, body)
		sendDuration := time.Since(sendStart)
		totalSend += sendDuration

		if err != nil {
			failCount++
			fmt.Printf("  [%d/%d] FAIL (%s): %v\n", seq, cfg.count, sendDuration, err)
			continue
		}
		successCount++
		handles = append(handles, handle)
		fmt.Printf("  [%d/%d] OK   (%s)\n", seq, cfg.count, sendDuration)
	}

	fmt.Println()
	fmt.Printf("Results: %d accepted, %d failed, total time %s\n", successCount, failCount, totalSend)

	if cfg.wait && len(handles) > 0 {
		fmt.Println()
		fmt.Println("Waiting for delivery status...")
		for i, h := range handles {
			st, err := waitForStatus(client, cfg, h)
			if err != nil {
				failCount++
				fmt.Printf("  [%d/%d] ERROR: %v\n", i+1, len(handles), err)
				continue
			}
			line := fmt.Sprintf("  [%d/%d] %-9s %s", i+1, len(handles), st.Status, st.ID)
			if st.Error != nil {
				line += fmt.Sprintf(" (%s: %s)", st.Error.Code, st.Error.Message)
			}
			fmt.Println(line)
			if st.Status == "Failed" || st.Status == "Canceled" {
				failCount++
			}
		}
	}

	if failCount > 0 {
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.url, "url", "http://localhost:3000", "Email gateway base URL")
	flag.Var(&cfg.to, "to", "Recipient email address (can be specified multiple times)")
	flag.StringVar(&cfg.subject, "subject", "Test Email", "Email subject")
	flag.StringVar(&cfg.body, "body", "This is a test email sent by the email-gateway test-client.", "Email body")
	flag.BoolVar(&cfg.html, "html", false, "Send the body as HTML instead of plain text")
	flag.IntVar(&cfg.count, "count", 1, "Number of emails to send (for batch testing)")
	flag.Float64Var(&cfg.rate, "rate", 1, "Emails per second for batch sending")
	flag.BoolVar(&cfg.wait, "wait", false, "Poll status until each message reaches a terminal state")
	flag.DurationVar(&cfg.pollInterval, "poll-interval", 5*time.Second, "Delay between status queries")
	flag.DurationVar(&cfg.timeout, "timeout", 2*time.Minute, "Per-request timeout and overall wait limit per message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: test-client [options]\n\n")
		fmt.Fprintf(os.Stderr, "A CLI tool for sending test emails through the email gateway API.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  test-client --to recipient@example.com\n")
		fmt.Fprintf(os.Stderr, "  test-client --to recipient@example.com --html --body '<b>Hello</b>'\n")
		fmt.Fprintf(os.Stderr, "  test-client --count 100 --rate 10 --to recipient@example.com --wait\n")
	}

	flag.Parse()
	return cfg
}

func sendEmail(client *http.Client, cfg config, subject, body string) (string, error) {
	var req sendRequest
	for _, addr := range cfg.to {
		req.Recipients.To = append(req.Recipients.To, recipient{Address: addr})
	}
	req.Subject = subject
	if cfg.html {
		req.Content.HTML = body
	} else {
		req.Content.PlainText = body
	}

	var resp struct {
		MessageID string `json:"messageId"`
	}
	if err := postJSON(client, cfg.url+"/api/email", req, &resp); err != nil {
		return "", err
	}
	if resp.MessageID == "" {
		return "", fmt.Errorf("response has no messageId")
	}
	return resp.MessageID, nil
}

func waitForStatus(client *http.Client, cfg config, handle string) (*statusResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	for {
		var st statusResponse
		if err := postJSON(client, cfg.url+"/api/email/status", map[string]string{"messageId": handle}, &st); err != nil {
			return nil, err
		}
		if st.Status != "Queued" {
			return &st, nil
		}

		select {
		case <-ctx.Done():
			return &st, nil
		case <-time.After(cfg.pollInterval):
		}
	}
}

func postJSON(client *http.Client, url string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
