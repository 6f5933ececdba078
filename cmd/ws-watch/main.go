package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws-watch connects to the woodshed state WebSocket and prints every state
// event as it arrives. Useful for debugging UI integrations and for watching
// what the daemon broadcasts during a practice session.

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8723/ws/state", "woodshed state WebSocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of formatted events")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	// Handle shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	// Message reading loop
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				continue
			}

			if *raw {
				fmt.Printf("%s\n", string(message))
				continue
			}

			printEvent(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// envelope mirrors the daemon's wire format: {type, ts, data}.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// printEvent formats a single state event for the terminal.
func printEvent(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch env.Type {
	case "position_changed":
		var d struct {
			PositionSec float64 `json:"position_sec"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("[POSITION] %.1fs\n", d.PositionSec)
			return
		}

	case "transport_changed":
		var d struct {
			IsPlaying      bool    `json:"is_playing"`
			Speed          float64 `json:"speed"`
			PitchSemitones float64 `json:"pitch_semitones"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			status := "PAUSED"
			if d.IsPlaying {
				status = "PLAYING"
			}
			fmt.Printf("[TRANSPORT] %s speed=%.2fx pitch=%+.1f\n", status, d.Speed, d.PitchSemitones)
			return
		}

	case "track_loaded":
		var d struct {
			Name        string  `json:"name"`
			DurationSec float64 `json:"duration_sec"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("[TRACK] %s (%.1fs)\n", d.Name, d.DurationSec)
			return
		}

	case "loop_changed":
		var d struct {
			ASec    *float64 `json:"a_sec"`
			BSec    *float64 `json:"b_sec"`
			Enabled bool     `json:"enabled"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("[LOOP] a=%s b=%s enabled=%v\n", fmtBound(d.ASec), fmtBound(d.BSec), d.Enabled)
			return
		}

	case "markers_changed":
		var d struct {
			Markers []struct {
				ID      string  `json:"id"`
				TimeSec float64 `json:"time_sec"`
			} `json:"markers"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("[MARKERS] %d\n", len(d.Markers))
			for _, m := range d.Markers {
				fmt.Printf("  %s @ %.1fs\n", m.ID, m.TimeSec)
			}
			return
		}

	case "toast":
		var d struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("[TOAST] %s\n", d.Message)
			return
		}

	case "state_init":
		var pretty map[string]any
		if json.Unmarshal(env.Data, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("[INIT]\n%s\n", string(out))
			return
		}
	}

	// Unknown or unparseable: dump the frame as-is.
	fmt.Printf("[%s] %s\n", env.Type, string(env.Data))
}

func fmtBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *v)
}
