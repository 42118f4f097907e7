// client is a command-line client for a blockroom server.
//
// Usage:
//
//	client ping [--count 5] [--interval 1s]   - measure round-trip latency
//	client join <username>                     - join a room and play from stdin
//
// Global flags:
//
//	--server <host:port>   - server address (default: localhost:8080)
//	--room <id>            - room id (default: lobby)
package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagRoom   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Inspect and play a blockroom server",
	Long: `client connects to a blockroom room over WebSocket.

Examples:
  client ping --count 10
  client --room abc123 join Fox`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "localhost:8080", "Server address")
	rootCmd.PersistentFlags().StringVar(&flagRoom, "room", "lobby", "Room id")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(joinCmd)
}

func roomURL() string {
	u := url.URL{Scheme: "ws", Host: flagServer, Path: "/ws/" + flagRoom}
	return u.String()
}

func dial() (*websocket.Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(roomURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", roomURL(), err)
	}
	return c, nil
}
