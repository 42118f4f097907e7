package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join <username>",
	Short: "Join a room and send intents from stdin",
	Long: `Join a room, print every frame the server sends, and turn each stdin line
into an intent:

  left, right        shift the active piece
  cw, ccw            rotate
  down, drop         soft or hard drop
  start, reset       lifecycle
  ready, unready     toggle ready
  team A|B           pick a team
  move DX DY         move in a free room
  {...}              any raw JSON frame`,
	Args: cobra.ExactArgs(1),
	RunE: runJoin,
}

func runJoin(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				fmt.Fprintln(out, "read:", err)
				return
			}
			fmt.Fprintf(out, "<- %s\n", data)
		}
	}()

	join, _ := json.Marshal(map[string]string{"type": "join", "username": args[0]})
	if err := c.WriteMessage(websocket.TextMessage, join); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	for {
		select {
		case <-done:
			return nil
		case <-interrupt:
			c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			frame, err := intent(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if frame == nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		}
	}
}

// intent turns one line of user input into a frame. Blank lines yield nil.
func intent(line string) ([]byte, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, "{") {
		if !json.Valid([]byte(line)) {
			return nil, fmt.Errorf("invalid JSON: %s", line)
		}
		return []byte(line), nil
	}

	fields := strings.Fields(line)
	var msg map[string]any
	switch fields[0] {
	case "left":
		msg = map[string]any{"type": "shift", "dir": -1}
	case "right":
		msg = map[string]any{"type": "shift", "dir": 1}
	case "cw":
		msg = map[string]any{"type": "rotate", "dir": "CW"}
	case "ccw":
		msg = map[string]any{"type": "rotate", "dir": "CCW"}
	case "down":
		msg = map[string]any{"type": "soft-drop"}
	case "drop":
		msg = map[string]any{"type": "hard-drop"}
	case "start", "reset":
		msg = map[string]any{"type": fields[0]}
	case "ready":
		msg = map[string]any{"type": "ready", "ready": true}
	case "unready":
		msg = map[string]any{"type": "ready", "ready": false}
	case "team":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: team A|B")
		}
		msg = map[string]any{"type": "set-team", "team": strings.ToUpper(fields[1])}
	case "move":
		var dx, dy int
		if len(fields) != 3 {
			return nil, fmt.Errorf("usage: move DX DY")
		}
		if _, err := fmt.Sscanf(fields[1]+" "+fields[2], "%d %d", &dx, &dy); err != nil {
			return nil, fmt.Errorf("usage: move DX DY")
		}
		msg = map[string]any{"type": "move", "dx": dx, "dy": dy}
	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
	return json.Marshal(msg)
}
