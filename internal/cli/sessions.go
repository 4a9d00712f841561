// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Session listing, deletion and export for the nova CLI.
package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lawsonmorris/nova-cli/internal/export"
	"github.com/lawsonmorris/nova-cli/internal/model"
	"github.com/lawsonmorris/nova-cli/internal/util"
)

// maxTitleRunes bounds session titles in list output.
const maxTitleRunes = 40

// HandleSessions lists the saved sessions of the logged-in account, and
// dispatches the 'delete' and 'export' subcommands.
func HandleSessions(app *App, args Args) error {
	user := app.Auth.CurrentUser()
	if user == nil {
		return errors.New("not logged in; run 'nova login' first")
	}

	switch args.Subcommand {
	case "export":
		return handleSessionExport(app, user.ID, args.Raw[1:])
	case "delete", "rm":
		return handleSessionDelete(app, user.ID, args.Raw[1:])
	case "", "list", "ls":
		// fall through to the listing below
	default:
		return fmt.Errorf("unknown subcommand %q (valid: list, delete, export)", args.Subcommand)
	}

	sessions := app.Sessions.List(user.ID)
	if len(sessions) == 0 {
		fmt.Println(infoStyle.Render("No sessions yet. Run 'nova' to start chatting."))
		return nil
	}

	fmt.Println()
	fmt.Println(titleStyle.Render(fmt.Sprintf("Sessions for %s", user.Name)))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	printSessionList(sessions, "")
	fmt.Println()
	return nil
}

// handleSessionDelete removes a session by list number or ID prefix.
// Usage: nova sessions delete <number|id-prefix>
func handleSessionDelete(app *App, ownerID string, raw []string) error {
	if len(raw) == 0 {
		return errors.New("usage: nova sessions delete <number>")
	}

	sessions := app.Sessions.List(ownerID)
	sess, err := pickSession(sessions, raw[0])
	if err != nil {
		return fmt.Errorf("%w; run 'nova sessions' to list", err)
	}

	remaining := app.Sessions.Delete(ownerID, sess.ID)
	fmt.Println(successStyle.Render(fmt.Sprintf("Deleted %q (%d remaining)",
		util.TruncateRunes(sess.Title, maxTitleRunes), len(remaining))))
	return nil
}

// handleSessionExport writes a session to a file in the current directory.
// Usage: nova sessions export <number|id-prefix> [--format md|json]
func handleSessionExport(app *App, ownerID string, raw []string) error {
	format := ""
	ref := ""
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--format" || raw[i] == "-f":
			if i+1 < len(raw) {
				i++
				format = raw[i]
			}
		case strings.HasPrefix(raw[i], "--format="):
			format = strings.TrimPrefix(raw[i], "--format=")
		case ref == "":
			ref = raw[i]
		}
	}
	if ref == "" {
		return errors.New("usage: nova sessions export <number> [--format md|json]")
	}

	sessions := app.Sessions.List(ownerID)
	sess, err := pickSession(sessions, ref)
	if err != nil {
		return fmt.Errorf("%w; run 'nova sessions' to list", err)
	}

	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(sess, exporter, nil)
	if err != nil {
		return fmt.Errorf("export session: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Exported to %s", path)))
	return nil
}

// printSessionList prints a numbered session list, marking currentID.
func printSessionList(sessions []*model.ChatSession, currentID string) {
	for i, sess := range sessions {
		marker := "  "
		title := util.TruncateRunes(sess.Title, maxTitleRunes)
		if sess.ID == currentID {
			marker = commandStyle.Render("* ")
			title = commandStyle.Render(title)
		}
		updated := time.UnixMilli(sess.UpdatedAt).Format("Jan 2 15:04")
		fmt.Printf("%s%2d. %s %s\n",
			marker, i+1, title,
			dimStyle.Render(fmt.Sprintf("(%d messages, %s)", len(sess.Messages), updated)))
	}
}
