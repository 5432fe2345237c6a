// Command tester is an interactive smoke client: it logs in, opens a
// websocket session, prints everything it receives, and sends stdin lines
// to a fixed recipient.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"courier/client"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL   string `env:"COURIER_SERVER_URL,default=http://localhost:5000"`
	Email       string `env:"COURIER_EMAIL,required=true"`
	Password    string `env:"COURIER_PASSWORD,required=true"`
	RecipientID string `env:"COURIER_RECIPIENT_ID,required=true"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tester error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Authenticate and connect.
	c := client.New(config.ServerURL)
	token, err := c.Login(config.Email, config.Password)
	if err != nil {
		return exitRuntime, fmt.Errorf("login failed: %w", err)
	}

	session, err := c.Connect(ctx, token)
	if err != nil {
		return exitRuntime, fmt.Errorf("connect failed: %w", err)
	}
	defer session.Close()
	log.Info("Connected", "server", config.ServerURL, "recipient", config.RecipientID)

	// 4. Print deliveries as they arrive.
	go func() {
		for frame := range session.Incoming {
			switch frame.Type {
			case "message":
				fmt.Printf("[%s] %s: %s\n",
					frame.CreatedAt.Format("15:04:05"), frame.SenderID, frame.Content)
			case "error":
				fmt.Printf("[server error] %s\n", frame.Error)
			}
		}
	}()

	// 5. Forward stdin lines as send intents.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping tester")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if line == "" {
				continue
			}
			if err := session.Send(config.RecipientID, line); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}
