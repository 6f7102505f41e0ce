package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qs3c/bug_triage_server/internal/pkg/ws"
)

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "watch <job_id>",
	Short: "Follow the progress of a triage job in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Triage server base URL")
	rootCmd.Flags().StringVar(&token, "token", "", "JWT for the job's project (overrides TRIAGE_TOKEN env var)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// progressURL 把 http(s) 地址换成对应的 ws(s) 进度地址
func progressURL(base, jobID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/ws/progress/" + url.PathEscape(jobID)
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func runWatch(_ *cobra.Command, args []string) error {
	jobID := args[0]
	tok := token
	if tok == "" {
		tok = os.Getenv("TRIAGE_TOKEN")
	}
	if tok == "" {
		return fmt.Errorf("token is required (set TRIAGE_TOKEN or use --token)")
	}

	target, err := progressURL(serverURL, jobID, tok)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return fmt.Errorf("server refused subscription: %s", resp.Status)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	events := make(chan ws.Event, 16)
	closed := make(chan error, 1)
	go readEvents(conn, events, closed)

	program := tea.NewProgram(newModel(jobID, events, closed), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return err
	}
	m := final.(model)
	if !m.done {
		if m.err != nil {
			return fmt.Errorf("job %s: connection lost: %w", jobID, m.err)
		}
		return fmt.Errorf("job %s: stopped before completion", jobID)
	}
	return nil
}

// readEvents 读取进度帧直到连接关闭
func readEvents(conn *websocket.Conn, events chan<- ws.Event, closed chan<- error) {
	defer close(events)
	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			closed <- err
			return
		}
		events <- ev
	}
}
