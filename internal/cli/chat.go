// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the nova CLI.
//
// Handles the "nova chat" command (also the default), an interactive REPL
// conversing with the Gemini API through the streaming orchestrator.
package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"

	"github.com/lawsonmorris/nova-cli/internal/chat"
	"github.com/lawsonmorris/nova-cli/internal/config"
	"github.com/lawsonmorris/nova-cli/internal/export"
	"github.com/lawsonmorris/nova-cli/internal/model"
	"github.com/lawsonmorris/nova-cli/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT STATE
// =============================================================================

// chatState holds the live state of one interactive chat run.
type chatState struct {
	app  *App
	orch *chat.Orchestrator
	user *model.SessionUser
	sess *model.ChatSession

	input   *ChatCLI
	search  bool
	pending []model.Attachment
	quiet   bool

	// cancel aborts the in-flight turn, guarded for the signal goroutine.
	mu     sync.Mutex
	cancel context.CancelFunc

	// streaming print progress for the current model message
	printMsgID string
	printed    int
}

func (s *chatState) setCancel(fn context.CancelFunc) {
	s.mu.Lock()
	s.cancel = fn
	s.mu.Unlock()
}

func (s *chatState) cancelTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// printUpdate streams message snapshots to stdout as deltas. The
// orchestrator republishes the whole accumulated text on every fragment,
// so only the unseen tail is written.
func (s *chatState) printUpdate(_ string, msg model.Message) {
	if msg.ID != s.printMsgID {
		s.printMsgID = msg.ID
		s.printed = 0
		fmt.Printf("\n%s ", novaStyle.Render("Nova:"))
	}
	if len(msg.Text) > s.printed {
		fmt.Print(msg.Text[s.printed:])
		s.printed = len(msg.Text)
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive chat REPL.
func HandleChat(app *App, args Args) error {
	user := app.Auth.CurrentUser()
	if user == nil {
		return errors.New("not logged in; run 'nova register' or 'nova login' first")
	}
	if app.Gemini == nil {
		return errors.New("no API key configured; set NOVA_API_KEY or add it to ~/.nova/config.toml")
	}

	state := &chatState{
		app:    app,
		user:   user,
		search: args.Search || app.Config.Chat.WebSearch,
		quiet:  args.Quiet,
	}

	titles := chat.NewTitleGenerator(app.Gemini, app.Sessions, app.Log)
	state.orch = chat.NewOrchestrator(app.Gemini, app.Sessions, titles, state.printUpdate, app.Log)

	// First run: one-time intro.
	if !app.Auth.HasSeenOnboarding() {
		printOnboarding()
		if err := app.Auth.CompleteOnboarding(); err != nil {
			app.Log.Warn("failed to record onboarding")
		}
	}

	if err := state.resumeOrCreateSession(args); err != nil {
		return err
	}

	if !state.quiet {
		printWelcome(state)
	}

	state.input = NewChatCLI()
	defer state.input.Close()

	// Ctrl+C cancels the in-flight generation instead of killing the REPL.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if state.cancelTurn() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	// Main REPL loop.
	for {
		input, err := state.input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF (Ctrl+D) exits gracefully.
			fmt.Println()
			fmt.Println(infoStyle.Render("Goodbye!"))
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := state.handleSlashCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				fmt.Println(infoStyle.Render("Goodbye!"))
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println(infoStyle.Render("Goodbye!"))
			return nil
		}

		if err := state.sendMessage(input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// resumeOrCreateSession picks the most recent session or seeds a new one.
// Explicit --model/--persona flags apply to the active session.
func (s *chatState) resumeOrCreateSession(args Args) error {
	sessions := s.app.Sessions.List(s.user.ID)
	if len(sessions) > 0 {
		s.sess = sessions[0]
	} else {
		m := model.ParseAiModel(firstNonEmpty(args.Model, s.app.Config.Gemini.DefaultModel))
		p := model.ParsePersona(firstNonEmpty(args.Persona, s.app.Config.Chat.DefaultPersona))
		sess, err := s.app.Sessions.Create(s.user.ID, m, p)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		s.sess = sess
		return nil
	}

	changed := false
	if args.Model != "" {
		s.sess.Model = model.ParseAiModel(args.Model)
		changed = true
	}
	if args.Persona != "" {
		s.sess.Persona = model.ParsePersona(args.Persona)
		changed = true
	}
	if changed {
		if err := s.app.Sessions.Save(s.sess); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// sendMessage submits one user turn and streams the response.
func (s *chatState) sendMessage(text string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	attachments := s.pending
	s.pending = nil

	err := s.orch.Submit(ctx, s.sess, text, attachments, chat.Options{WebSearch: s.search})
	if errors.Is(err, context.Canceled) {
		fmt.Println()
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println()
	s.printCitations()
	fmt.Println()
	return nil
}

// regenerate replays the last user turn with a fresh response.
func (s *chatState) regenerate() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	err := s.orch.Regenerate(ctx, s.sess, chat.Options{WebSearch: s.search})
	if errors.Is(err, context.Canceled) {
		fmt.Println()
		return nil
	}
	if errors.Is(err, chat.ErrInvalidState) {
		return errors.New("nothing to regenerate yet")
	}
	if err != nil {
		return err
	}

	fmt.Println()
	s.printCitations()
	fmt.Println()
	return nil
}

// printCitations prints web sources attached to the latest response.
func (s *chatState) printCitations() {
	last := s.sess.LastMessage()
	if last == nil || last.GroundingMetadata.IsEmpty() {
		return
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Sources:"))
	for _, chunk := range last.GroundingMetadata.GroundingChunks {
		if chunk.Web == nil {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		fmt.Printf("  %s %s\n", dimStyle.Render("-"), fmt.Sprintf("%s (%s)", title, chunk.Web.URI))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (keepGoing, error) where keepGoing=false means exit.
func (s *chatState) handleSlashCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printChatHelp()
		return true, nil

	case "/new", "/n":
		return true, s.newSession()

	case "/sessions", "/ls", "/list":
		fmt.Println()
		printSessionList(s.app.Sessions.List(s.user.ID), s.sess.ID)
		fmt.Println()
		return true, nil

	case "/switch", "/sw":
		if len(args) == 0 {
			return true, errors.New("usage: /switch N (see /sessions)")
		}
		return true, s.switchSession(args[0])

	case "/delete", "/del", "/rm":
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		return true, s.deleteSession(target)

	case "/regen", "/r":
		return true, s.regenerate()

	case "/search":
		return true, s.toggleSearch(args)

	case "/model", "/m":
		return true, s.setModel(args)

	case "/persona", "/p":
		return true, s.setPersona(args)

	case "/attach", "/a":
		if len(args) == 0 {
			return true, errors.New("usage: /attach PATH")
		}
		return true, s.attachFile(strings.Join(args, " "))

	case "/export", "/e":
		format := ""
		if len(args) > 0 {
			format = args[0]
		}
		return true, s.exportSession(format)

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// newSession starts a fresh session with the current session's settings.
func (s *chatState) newSession() error {
	sess, err := s.app.Sessions.Create(s.user.ID, s.sess.Model, s.sess.Persona)
	if err != nil {
		return err
	}
	s.sess = sess
	fmt.Printf("%s New session started.\n", commandStyle.Render("[OK]"))
	return nil
}

// switchSession activates the session at the given list position.
func (s *chatState) switchSession(arg string) error {
	sessions := s.app.Sessions.List(s.user.ID)
	sess, err := pickSession(sessions, arg)
	if err != nil {
		return err
	}
	s.sess = sess
	fmt.Printf("%s Switched to %q.\n",
		commandStyle.Render("[OK]"), util.TruncateRunes(sess.Title, maxTitleRunes))
	return nil
}

// deleteSession removes the current (or the named) session and selects a
// successor, creating a fresh session when none remain.
func (s *chatState) deleteSession(arg string) error {
	target := s.sess
	if arg != "" {
		sessions := s.app.Sessions.List(s.user.ID)
		var err error
		target, err = pickSession(sessions, arg)
		if err != nil {
			return err
		}
	}

	remaining := s.app.Sessions.Delete(s.user.ID, target.ID)
	fmt.Printf("%s Deleted %q.\n",
		commandStyle.Render("[OK]"), util.TruncateRunes(target.Title, maxTitleRunes))

	if target.ID != s.sess.ID {
		return nil
	}

	// The active session is gone; move to the most recent survivor.
	if len(remaining) > 0 {
		s.sess = remaining[0]
		fmt.Printf("%s Switched to %q.\n",
			commandStyle.Render("[OK]"), util.TruncateRunes(s.sess.Title, maxTitleRunes))
		return nil
	}
	return s.newSession()
}

// toggleSearch flips or sets web search grounding.
func (s *chatState) toggleSearch(args []string) error {
	switch {
	case len(args) == 0:
		s.search = !s.search
	case strings.EqualFold(args[0], "on"):
		s.search = true
	case strings.EqualFold(args[0], "off"):
		s.search = false
	default:
		return fmt.Errorf("usage: /search [on|off]")
	}

	if s.search {
		fmt.Printf("%s Web search enabled.\n", commandStyle.Render("[OK]"))
	} else {
		fmt.Printf("%s Web search disabled.\n", commandStyle.Render("[OK]"))
	}
	return nil
}

// setModel shows or switches the session model.
func (s *chatState) setModel(args []string) error {
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"), commandStyle.Render(s.sess.Model.String()))
		return nil
	}

	switch args[0] {
	case "fast", "pro", model.ModelFast.String(), model.ModelPro.String():
	default:
		return fmt.Errorf("unknown model %q (valid: fast, pro)", args[0])
	}
	m := model.ParseAiModel(args[0])

	s.sess.Model = m
	if err := s.app.Sessions.Save(s.sess); err != nil {
		return err
	}
	fmt.Printf("%s Switched to model: %s\n",
		commandStyle.Render("[OK]"), m.String())
	return nil
}

// setPersona shows or switches the session persona.
func (s *chatState) setPersona(args []string) error {
	if len(args) == 0 {
		fmt.Printf("%s Current persona: %s\n",
			infoStyle.Render("[Persona]"), commandStyle.Render(s.sess.Persona.String()))
		return nil
	}

	p := model.Persona(args[0])
	if !p.Valid() {
		return fmt.Errorf("unknown persona %q (valid: standard, gen_z, writer, coder)", args[0])
	}

	s.sess.Persona = p
	if err := s.app.Sessions.Save(s.sess); err != nil {
		return err
	}
	fmt.Printf("%s Switched to persona: %s\n",
		commandStyle.Render("[OK]"), p.String())
	return nil
}

// attachFile queues a file as an attachment for the next message.
func (s *chatState) attachFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	// Strip parameters like "; charset=utf-8"; the API wants the bare type.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	s.pending = append(s.pending, model.Attachment{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	})
	fmt.Printf("%s Attached %s (%s, %d bytes). It will be sent with your next message.\n",
		commandStyle.Render("[OK]"), filepath.Base(path), mimeType, len(data))
	return nil
}

// exportSession writes the current session to a file in the working directory.
func (s *chatState) exportSession(format string) error {
	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(s.sess, exporter, nil)
	if err != nil {
		return fmt.Errorf("export session: %w", err)
	}
	fmt.Printf("%s Exported to %s\n", commandStyle.Render("[OK]"), path)
	return nil
}

// pickSession resolves a list index or an ID prefix to a session.
func pickSession(sessions []*model.ChatSession, arg string) (*model.ChatSession, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			return nil, fmt.Errorf("no session %d (have %d)", n, len(sessions))
		}
		return sessions[n-1], nil
	}
	for _, sess := range sessions {
		if strings.HasPrefix(sess.ID, arg) {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("no session matching %q", arg)
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printOnboarding prints the one-time first-run intro.
func printOnboarding() {
	fmt.Println()
	fmt.Println(novaStyle.Render("Hello, I'm Nova."))
	fmt.Println(infoStyle.Render("I can help you with analysis, creative writing, coding, and researching the web."))
	fmt.Println(infoStyle.Render("Everything except the conversation itself stays on your machine."))
	fmt.Println()
}

// printWelcome prints the session banner.
func printWelcome(s *chatState) {
	fmt.Println()
	fmt.Println(titleStyle.Render("nova chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Session:"),
		commandStyle.Render(util.TruncateRunes(s.sess.Title, maxTitleRunes)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(s.sess.Model.String()))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Persona:"),
		commandStyle.Render(s.sess.Persona.String()))
	if s.search {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Search:"),
			commandStyle.Render("enabled"))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printChatHelp prints available slash commands.
func printChatHelp() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new", "Start a new session"},
		{"/sessions, /ls", "List sessions"},
		{"/switch N", "Switch to session N"},
		{"/delete [N]", "Delete the current (or Nth) session"},
		{"/regen", "Regenerate the last response"},
		{"/search [on|off]", "Toggle web search grounding"},
		{"/model [fast|pro]", "Show or switch model"},
		{"/persona [name]", "Show or switch persona"},
		{"/attach PATH", "Attach a file to the next message"},
		{"/export [md|json]", "Export this session to a file"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-18s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current generation, Ctrl+D exits"))
	fmt.Println()
}
