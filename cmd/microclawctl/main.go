// Command microclawctl is a thin CLI wrapper around microclawd's
// operator-plane HTTP API: a stdlib-flag-driven entrypoint with one
// subcommand per verb rather than a generated client.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		serverURL, token := globalFlags(fs)
		chatID := fs.String("chat", "", "chat id to post to")
		text := fs.String("text", "", "message text")
		_ = fs.Parse(args)
		if *chatID == "" || *text == "" {
			fmt.Fprintln(os.Stderr, "usage: microclawctl send -chat <id> -text <msg>")
			os.Exit(1)
		}
		runSend(*serverURL, *token, *chatID, *text)

	case "tools":
		fs := flag.NewFlagSet("tools", flag.ExitOnError)
		serverURL, token := globalFlags(fs)
		_ = fs.Parse(args)
		runTools(*serverURL, *token)

	case "session":
		fs := flag.NewFlagSet("session", flag.ExitOnError)
		serverURL, token := globalFlags(fs)
		id := fs.String("id", "", "session id")
		op := fs.String("op", "", "fork|reset|delete")
		_ = fs.Parse(args)
		if *id == "" || *op == "" {
			fmt.Fprintln(os.Stderr, "usage: microclawctl session -id <id> -op <fork|reset|delete>")
			os.Exit(1)
		}
		runSessionOp(*serverURL, *token, *id, *op)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: microclawctl <send|tools|session> [flags]")
}

// globalFlags registers the -url/-token flags every subcommand accepts.
func globalFlags(fs *flag.FlagSet) (serverURL, token *string) {
	serverURL = fs.String("url", "http://localhost:8080", "microclawd base URL")
	token = fs.String("token", os.Getenv("MICROCLAW_TOKEN"), "bearer token (or $MICROCLAW_TOKEN)")
	return
}

func newClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func doRequest(method, url, token string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := newClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return data, resp.StatusCode, err
}

func runSend(baseURL, token, chatID, text string) {
	url := fmt.Sprintf("%s/api/chats/%s/messages", baseURL, chatID)
	data, status, err := doRequest(http.MethodPost, url, token, map[string]string{"text": text})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("status=%d\n%s\n", status, data)
}

func runTools(baseURL, token string) {
	url := baseURL + "/api/tools"
	data, status, err := doRequest(http.MethodGet, url, token, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("status=%d\n%s\n", status, data)
}

func runSessionOp(baseURL, token, sessionID, op string) {
	url := fmt.Sprintf("%s/api/sessions/%s/%s", baseURL, sessionID, op)
	data, status, err := doRequest(http.MethodPost, url, token, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("status=%d\n%s\n", status, data)
}
