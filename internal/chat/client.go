package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"SahakariChat/internal/api"
	"SahakariChat/internal/config"
	"SahakariChat/internal/credentials"
	"SahakariChat/internal/dispatch"
	"SahakariChat/internal/registry"
	"SahakariChat/internal/session"
	"SahakariChat/internal/telemetry"
	"SahakariChat/internal/upload"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Client is the interactive terminal front end. It owns the wiring between
// the gateway, the session store, the dispatcher, and the registry; every
// user action flows through those, never directly to the network.
type Client struct {
	config     config.Config
	logger     *slog.Logger
	creds      *credentials.Store
	gateway    *api.Gateway
	session    *session.Store
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	cleanup    func()

	stdin    *bufio.Scanner
	rendered int         // messages already printed
	expired  atomic.Bool // set by the session-expired signal
}

// NewClient creates a fully wired Client.
func NewClient(cfg config.Config) (*Client, error) {
	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = config.DefaultCredentialsPath
	}
	creds, err := credentials.Open(cfg.CredentialsPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = config.DefaultTopK
	}

	gateway := api.NewGateway(cfg, creds, logger, tracer, meter)
	store := session.NewStore()

	c := &Client{
		config:     cfg,
		logger:     logger,
		creds:      creds,
		gateway:    gateway,
		session:    store,
		dispatcher: dispatch.New(gateway, store, cfg.TopK, logger),
		registry:   registry.New(gateway, store, logger),
		cleanup:    cleanup,
		stdin:      bufio.NewScanner(os.Stdin),
	}
	gateway.OnSessionExpired(func() {
		c.expired.Store(true)
	})

	return c, nil
}

// Run starts the interactive loop.
func (c *Client) Run() error {
	defer c.cleanup()
	defer c.creds.Close()

	fmt.Println("=== Sahakari Bot ===")
	fmt.Println("Ask questions about cybersecurity compliance, insider risk")
	fmt.Println("evaluation, or upload documents to get started.")
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	ctx := context.Background()

	if user, ok := c.currentUser(); ok {
		fmt.Printf("Logged in as %s\n\n", user.Username)
		if err := c.registry.Refresh(ctx); err != nil {
			c.logger.Warn("initial document load failed", "error", err)
		}
		c.checkExpired()
	} else {
		fmt.Println("Not logged in. Use /login <email> or /register <email> <username>.")
		fmt.Println()
	}

	for {
		fmt.Print("You: ")
		if !c.stdin.Scan() {
			break
		}

		input := strings.TrimSpace(c.stdin.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := c.handleCommand(ctx, input)
			if err != nil {
				color.Red("Error: %v", err)
				c.logger.Error("command error", "error", err)
			}
			c.checkExpired()
			if shouldQuit {
				break
			}
			continue
		}

		if !c.dispatcher.Submit(ctx, input) {
			// Input stays on screen untouched; nothing was appended.
			color.Yellow("Still waiting on the previous request.")
			continue
		}
		c.renderNew()
		c.checkExpired()
	}

	fmt.Println("Goodbye!")
	return nil
}

// handleCommand handles slash commands. It returns true when the client
// should exit.
func (c *Client) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/login":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /login <email>")
		}
		password, err := c.readPassword("Password: ")
		if err != nil {
			return false, fmt.Errorf("failed to read password: %w", err)
		}
		resp, err := c.gateway.Login(ctx, parts[1], password)
		if err != nil {
			return false, err
		}
		color.Green("Logged in as %s", resp.User.Username)
		if err := c.registry.Refresh(ctx); err != nil {
			c.logger.Warn("document load after login failed", "error", err)
		}
		return false, nil

	case "/register":
		if len(parts) < 3 {
			return false, fmt.Errorf("usage: /register <email> <username>")
		}
		password, err := c.readPassword("Password: ")
		if err != nil {
			return false, fmt.Errorf("failed to read password: %w", err)
		}
		resp, err := c.gateway.Register(ctx, parts[1], parts[2], password)
		if err != nil {
			return false, err
		}
		color.Green("Registered and logged in as %s", resp.User.Username)
		return false, nil

	case "/logout":
		if err := c.gateway.Logout(); err != nil {
			return false, err
		}
		fmt.Println("Logged out.")
		return false, nil

	case "/upload":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /upload <path>")
		}
		return false, c.uploadFile(ctx, strings.TrimSpace(strings.TrimPrefix(cmd, "/upload")))

	case "/docs":
		refresh := len(parts) > 1 && parts[1] == "refresh"
		if refresh || c.registry.Documents() == nil {
			if err := c.registry.Refresh(ctx); err != nil {
				return false, err
			}
		}
		c.renderDocuments(c.registry.Documents())
		return false, nil

	case "/citations":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /citations <message-id>")
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid message id: %s", parts[1])
		}
		return false, c.toggleCitations(id)

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit                 - Exit")
		fmt.Println("  /login <email>               - Log in (password prompted)")
		fmt.Println("  /register <email> <username> - Create an account")
		fmt.Println("  /logout                      - Log out and clear credentials")
		fmt.Println("  /upload <path>               - Upload a PDF or Excel document (max 10 MB)")
		fmt.Println("  /docs [refresh]              - List uploaded documents")
		fmt.Println("  /citations <message-id>      - Show or hide a message's sources")
		fmt.Println("  /help                        - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// uploadFile validates the file locally, then runs the upload under the
// shared pending flag so a query cannot start while it is outstanding.
func (c *Client) uploadFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}
	filename := filepath.Base(path)

	if err := upload.Validate(filename, info.Size()); err != nil {
		// Validation failures never reach the network.
		return err
	}

	if !c.session.BeginPending() {
		return fmt.Errorf("another request is in flight, try again in a moment")
	}
	defer c.session.EndPending()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}

	fmt.Println("Uploading and processing...")
	c.registry.Upload(ctx, filename, data)
	c.renderNew()
	return nil
}

// toggleCitations flips citation visibility for an assistant message and
// re-renders its sources when they become visible.
func (c *Client) toggleCitations(id int64) error {
	for _, msg := range c.session.History() {
		if msg.ID != id {
			continue
		}
		if msg.Kind != session.KindAssistant || len(msg.Citations) == 0 {
			return fmt.Errorf("message %d has no citations", id)
		}
		c.session.ToggleCitations(id)
		if c.session.CitationsShown(id) {
			c.renderCitations(msg)
		} else {
			fmt.Printf("Sources for message %d hidden.\n", id)
		}
		return nil
	}
	return fmt.Errorf("no such message: %d", id)
}

// currentUser decodes the persisted user descriptor.
func (c *Client) currentUser() (api.User, bool) {
	raw, ok := c.creds.User()
	if !ok {
		return api.User{}, false
	}
	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		c.logger.Warn("stored user descriptor is invalid", "error", err)
		return api.User{}, false
	}
	return user, true
}

// checkExpired surfaces the session-expired signal once and drops the user
// back to the logged-out prompt.
func (c *Client) checkExpired() {
	if c.expired.Swap(false) {
		color.Yellow("Session expired. Please /login again.")
	}
}

// readPassword reads a password without echo when stdin is a terminal.
func (c *Client) readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if !c.stdin.Scan() {
		return "", io.EOF
	}
	return c.stdin.Text(), nil
}
