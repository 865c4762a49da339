package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// chatClient is a WebSocket client for the chat endpoint.
type chatClient struct {
	conn *websocket.Conn
	out  io.Writer
}

func dialChat(ctx context.Context, addr string, out io.Writer) (*chatClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &chatClient{conn: conn, out: out}, nil
}

func (c *chatClient) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Send runs one turn and prints its entries until the close frame.
func (c *chatClient) Send(message, greeting string) error {
	if err := c.conn.WriteJSON(domain.SendMessageRequest{Message: message, Greeting: greeting}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	for {
		var frame domain.SocketFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if frame.Event == domain.FrameClose {
			return nil
		}
		if frame.Data == nil {
			continue
		}
		c.print(*frame.Data)
	}
}

func (c *chatClient) print(f domain.MessageFrame) {
	switch f.Role {
	case domain.RoleAssistant:
		fmt.Fprintf(c.out, "\n%s\n\n", f.Message)
	case domain.RoleError:
		fmt.Fprintf(c.out, "[error] %s\n", f.Message)
	default:
		fmt.Fprintf(c.out, "  [%s] %s\n", f.Role, f.Message)
	}
}

// runChat reads lines from in and sends each as one turn.
func runChat(ctx context.Context, addr, greeting string, in io.Reader, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(out, "Connecting to %s...\n", addr)
	client, err := dialChat(ctx, addr, out)
	if err != nil {
		return err
	}
	defer client.Close()
	go func() {
		<-ctx.Done()
		_ = client.conn.Close()
	}()

	fmt.Fprintln(out, "Connected. Type a message and press Enter to send.")
	fmt.Fprintln(out, "Commands: /quit to exit")
	if greeting != "" {
		fmt.Fprintf(out, "\n%s\n\n", greeting)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		}

		if err := client.Send(input, greeting); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		greeting = ""
	}
}
