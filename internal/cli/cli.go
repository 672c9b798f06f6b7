// Package cli parses buddy's command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// Parsed is the flag set. There are no subcommands; without flags buddy starts a conversation.
type Parsed struct {
	ConfigPath  string
	ShowHelp    bool
	ShowVersion bool
}

func Parse(args []string) (Parsed, error) {
	var parsed Parsed

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
		case "--version":
			parsed.ShowVersion = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if value, ok := strings.CutPrefix(arg, "--config="); ok {
				if strings.TrimSpace(value) == "" {
					return Parsed{}, errors.New("--config requires a path")
				}
				parsed.ConfigPath = value
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			return Parsed{}, fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH]

Starts a voice conversation with the local assistant.
Press ESC, press Ctrl+C, or say "goodbye" to finish.

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/buddy/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
