// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for nova.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdRegister
	CmdLogin
	CmdLogout
	CmdSessions
	CmdStatus
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	Model   string // overrides the configured default model
	Persona string // overrides the configured default persona
	Search  bool   // enable web search for the whole session

	// Command-specific
	Email      string
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `nova - Gemini-powered chat for the command line

Nova is a local-first conversational client. Accounts and chat sessions
live on your machine; only conversation turns are sent to the Gemini API.

Usage:
  nova                       Start interactive chat (default)
  nova chat                  Interactive chat
  nova register              Create a local account
  nova login [email]         Log in to a local account
  nova logout                Log out
  nova sessions              List saved chat sessions
  nova sessions delete N     Delete session N
  nova sessions export N     Export session N (--format md|json)
  nova status, s             Show account and configuration status
  nova version               Show version information
  nova help                  Show this help

Global Flags:
  -m, --model NAME    Model for new sessions: fast or pro
  -p, --persona NAME  Persona for new sessions: standard, gen_z, writer, coder
  --search            Enable web search grounding for the session
  -q, --quiet         Minimal output
  -v, --verbose       Verbose output

Interactive Commands (during chat):
  /help, /h           Show available commands
  /new                Start a new session
  /sessions, /ls      List sessions
  /switch N           Switch to session N from the list
  /delete [N]         Delete the current (or Nth) session
  /regen              Regenerate the last response
  /search [on|off]    Toggle web search grounding
  /model [fast|pro]   Show or switch the session model
  /persona [name]     Show or switch the session persona
  /attach PATH        Attach a file to the next message
  /export [md|json]   Export this session to a file
  /quit, /q           Exit chat
  Ctrl+C              Cancel current generation
  Ctrl+D              Exit chat

Configuration:
  ~/.nova/config.toml        Settings (API key, defaults)
  NOVA_API_KEY               Gemini API key (or GEMINI_API_KEY)
  NOVA_MODEL, NOVA_PERSONA   Default model and persona
  NOVA_DATA_DIR              Data directory override

Examples:
  nova register                     First run: create your account
  nova login                        Log in with a prompt for credentials
  nova --model pro                  Chat with the pro model
  nova --search                     Chat with web search grounding
  nova sessions                     See your conversation history

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("nova version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

// parseArgs is the testable core of Parse.
func parseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	// No command defaults to chat.
	if len(remaining) == 0 {
		return CmdChat, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "chat":
		return CmdChat, args

	case "register", "signup":
		return CmdRegister, args

	case "login":
		if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
			args.Email = remaining[0]
		}
		return CmdLogin, args

	case "logout":
		return CmdLogout, args

	case "session", "sessions":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
		}
		return CmdSessions, args

	case "status", "s":
		return CmdStatus, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, args
	}
}

// parseGlobalFlags extracts global flags, returning the remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	var remaining []string

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--search":
			args.Search = true
		case "-m", "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case "-p", "--persona":
			if i+1 < len(argv) {
				i++
				args.Persona = argv[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				args.Model = strings.TrimPrefix(arg, "--model=")
			} else if strings.HasPrefix(arg, "--persona=") {
				args.Persona = strings.TrimPrefix(arg, "--persona=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, args
}
