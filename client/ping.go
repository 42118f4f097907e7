package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/wfunc/blockroom/network"
)

var (
	flagCount    int
	flagInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip latency to a room",
	Long: `Send timestamped pings and report total, server processing and network
time for each, followed by min/avg/max.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().IntVar(&flagCount, "count", 5, "Number of pings")
	pingCmd.Flags().DurationVar(&flagInterval, "interval", time.Second, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	samples := make([]network.Latency, 0, flagCount)
	for i := 0; i < flagCount; i++ {
		if i > 0 {
			time.Sleep(flagInterval)
		}
		l, err := pingOnce(c)
		if err != nil {
			return err
		}
		samples = append(samples, l)
		fmt.Fprintf(out, "ping %d: total=%v processing=%v network=%v\n",
			i+1, l.Total, l.Processing, l.Network)
	}

	s := summarize(samples)
	fmt.Fprintf(out, "min=%v avg=%v max=%v over %d pings\n", s.Min, s.Avg, s.Max, s.Count)
	return nil
}

func pingOnce(c *websocket.Conn) (network.Latency, error) {
	ts := strconv.FormatFloat(float64(time.Now().UnixNano())/float64(time.Millisecond), 'f', 3, 64)
	msg := fmt.Sprintf(`{"type":"ping","timestamp":%s}`, ts)
	if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return network.Latency{}, err
	}

	c.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return network.Latency{}, err
		}
		var pong network.Pong
		if err := json.Unmarshal(data, &pong); err != nil || pong.Type != network.TypePong {
			continue
		}
		if pong.Timestamp.String() != ts {
			continue
		}
		return network.Decompose(time.Now(), pong)
	}
}
