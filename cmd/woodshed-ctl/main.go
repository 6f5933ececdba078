package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// ============================================================================
// woodshed-ctl - Command-line IPC Client
// ============================================================================
// This tool sends actions to the woodshed daemon via IPC.
//
// Usage:
//   woodshed-ctl import /path/to/track.mp3
//   woodshed-ctl play-pause
//   woodshed-ctl seek 45.5
//   woodshed-ctl speed +0.05
//   woodshed-ctl pitch -1
//   woodshed-ctl marker 12.3
//   woodshed-ctl loop-a 10 / loop-b 20 / loop on|off
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/woodshed.sock)
// ============================================================================

// Action types (duplicated from main package for standalone binary)
type Action interface{}

type ImportPicked struct {
	URL string `json:"url"`
}

type SelectMode struct {
	Mode string `json:"mode"`
}

type ScrubEnded struct {
	AtSec float64 `json:"at_sec"`
}

type TogglePlay struct{}

type SpeedDelta struct {
	Delta float64 `json:"delta"`
}

type PitchDelta struct {
	Delta float64 `json:"delta"`
}

type AddMarker struct {
	AtSec float64 `json:"at_sec"`
}

type DeleteMarker struct {
	ID string `json:"id"`
}

type SetLoopStart struct {
	AtSec float64 `json:"at_sec"`
}

type SetLoopEnd struct {
	AtSec float64 `json:"at_sec"`
}

type SetLoopEnabled struct {
	Enabled bool `json:"enabled"`
}

// ActionEnvelope wraps actions for JSON
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/woodshed.sock"

	// Parse arguments
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Parse command
	var action Action

	switch args[0] {
	case "import", "load":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: import requires a file path\n")
			os.Exit(1)
		}
		path, err := filepath.Abs(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		action = ImportPicked{URL: path}

	case "play-pause", "toggle":
		action = TogglePlay{}

	case "seek":
		t, ok := parseSeconds(args)
		if !ok {
			os.Exit(1)
		}
		action = ScrubEnded{AtSec: t}

	case "speed":
		d, ok := parseDelta(args)
		if !ok {
			os.Exit(1)
		}
		action = SpeedDelta{Delta: d}

	case "pitch":
		d, ok := parseDelta(args)
		if !ok {
			os.Exit(1)
		}
		action = PitchDelta{Delta: d}

	case "marker":
		t, ok := parseSeconds(args)
		if !ok {
			os.Exit(1)
		}
		action = AddMarker{AtSec: t}

	case "delete-marker":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: delete-marker requires a marker ID\n")
			os.Exit(1)
		}
		action = DeleteMarker{ID: args[1]}

	case "loop-a":
		t, ok := parseSeconds(args)
		if !ok {
			os.Exit(1)
		}
		action = SetLoopStart{AtSec: t}

	case "loop-b":
		t, ok := parseSeconds(args)
		if !ok {
			os.Exit(1)
		}
		action = SetLoopEnd{AtSec: t}

	case "loop":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Fprintf(os.Stderr, "error: loop requires on|off\n")
			os.Exit(1)
		}
		action = SetLoopEnabled{Enabled: args[1] == "on"}

	case "mode":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: mode requires seek|marker|loop_start|loop_end\n")
			os.Exit(1)
		}
		action = SelectMode{Mode: args[1]}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	// Send action
	if err := sendAction(socketPath, action); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func parseSeconds(args []string) (float64, bool) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "error: %s requires a time in seconds\n", args[0])
		return 0, false
	}
	t, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid time: %v\n", err)
		return 0, false
	}
	return t, true
}

func parseDelta(args []string) (float64, bool) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "error: %s requires a signed delta (e.g. +0.05, -1)\n", args[0])
		return 0, false
	}
	d, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid delta: %v\n", err)
		return 0, false
	}
	return d, true
}

func sendAction(socketPath string, action Action) error {
	// Connect to socket
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	// Marshal action
	data, err := marshalAction(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	// Send action (line-delimited JSON)
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send action: %w", err)
	}

	// Read response
	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	// Check response status
	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalAction(action Action) ([]byte, error) {
	var env ActionEnvelope

	withData := func(typ string, v any) error {
		env.Type = typ
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = data
		return nil
	}

	var err error
	switch a := action.(type) {
	case ImportPicked:
		err = withData("import_picked", a)

	case SelectMode:
		err = withData("select_mode", a)

	case ScrubEnded:
		err = withData("scrub_ended", a)

	case TogglePlay:
		env.Type = "toggle_play"

	case SpeedDelta:
		err = withData("speed_delta", a)

	case PitchDelta:
		err = withData("pitch_delta", a)

	case AddMarker:
		err = withData("add_marker", a)

	case DeleteMarker:
		err = withData("delete_marker", a)

	case SetLoopStart:
		err = withData("set_loop_start", a)

	case SetLoopEnd:
		err = withData("set_loop_end", a)

	case SetLoopEnabled:
		err = withData("set_loop_enabled", a)

	default:
		return nil, fmt.Errorf("unknown action type: %T", action)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `woodshed-ctl - Control the woodshed daemon via IPC

Usage:
  woodshed-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/woodshed.sock)

Commands:
  import, load <path>         Load an audio file (mp3/wav/flac/ogg)
  play-pause, toggle          Toggle play/pause
  seek <sec>                  Jump to a position in seconds
  speed <delta>               Nudge playback speed (e.g. +0.05, -0.05)
  pitch <delta>               Nudge pitch in semitones (e.g. +1, -1)
  marker <sec>                Drop a marker at a position
  delete-marker <id>          Delete a marker by ID
  loop-a <sec>                Set loop start
  loop-b <sec>                Set loop end
  loop on|off                 Enable/disable the A-B loop
  mode <m>                    Set tap mode: seek|marker|loop_start|loop_end
  help, -h, --help            Show this help message

Examples:
  woodshed-ctl import ~/practice/solo.mp3
  woodshed-ctl loop-a 62.5
  woodshed-ctl loop-b 71.0
  woodshed-ctl loop on
  woodshed-ctl speed -0.25
`)
}
