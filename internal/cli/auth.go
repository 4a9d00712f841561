// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - Account command handlers: register, login, logout, status.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lawsonmorris/nova-cli/internal/auth"
)

// =============================================================================
// REGISTER
// =============================================================================

// HandleRegister creates a local account and logs it in.
func HandleRegister(app *App, args Args) error {
	if err := RequiresTTY("register"); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("Create your nova account"))
	fmt.Println(infoStyle.Render("Accounts are stored locally on this machine."))
	fmt.Println()

	name, err := readLine("Name: ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("name must not be empty")
	}

	email := args.Email
	if email == "" {
		email, err = readLine("Email: ")
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(email) == "" {
		return errors.New("email must not be empty")
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := app.Auth.Register(name, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateAccount) {
			return fmt.Errorf("an account with email %q already exists; try 'nova login'", email)
		}
		return err
	}

	fmt.Println()
	fmt.Printf("%s Welcome, %s! You are now logged in.\n",
		successStyle.Render("[OK]"), user.Name)
	fmt.Println(infoStyle.Render("Run 'nova' to start chatting."))
	fmt.Println()
	return nil
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// HandleLogin authenticates against the local account store.
func HandleLogin(app *App, args Args) error {
	if current := app.Auth.CurrentUser(); current != nil {
		fmt.Printf("%s Already logged in as %s (%s)\n",
			infoStyle.Render("[Info]"), current.Name, current.Email)
		fmt.Println(infoStyle.Render("Run 'nova logout' first to switch accounts."))
		return nil
	}

	if err := RequiresTTY("log in"); err != nil {
		return err
	}

	email := args.Email
	if email == "" {
		var err error
		email, err = readLine("Email: ")
		if err != nil {
			return err
		}
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := app.Auth.Login(email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return errors.New("invalid email or password")
		}
		return err
	}

	fmt.Printf("%s Logged in as %s (%s)\n",
		successStyle.Render("[OK]"), user.Name, user.Email)
	return nil
}

// HandleLogout clears the active login.
func HandleLogout(app *App, _ Args) error {
	user := app.Auth.CurrentUser()
	if user == nil {
		fmt.Println(infoStyle.Render("Not logged in."))
		return nil
	}

	if err := app.Auth.Logout(); err != nil {
		return err
	}
	fmt.Printf("%s Logged out %s. Your sessions are kept locally.\n",
		successStyle.Render("[OK]"), user.Email)
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

// HandleStatus shows account and configuration status.
func HandleStatus(app *App, _ Args) error {
	fmt.Println()
	fmt.Println(titleStyle.Render("nova status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))

	user := app.Auth.CurrentUser()
	if user != nil {
		fmt.Printf("  %s %s (%s)\n",
			infoStyle.Render("Account:"),
			commandStyle.Render(user.Name), user.Email)
		fmt.Printf("  %s %d\n",
			infoStyle.Render("Sessions:"),
			len(app.Sessions.List(user.ID)))
	} else {
		fmt.Printf("  %s %s\n",
			infoStyle.Render("Account:"),
			warningStyle.Render("not logged in"))
	}

	if app.Config.Gemini.APIKey != "" {
		fmt.Printf("  %s %s\n",
			infoStyle.Render("API key:"),
			commandStyle.Render("configured"))
	} else {
		fmt.Printf("  %s %s\n",
			infoStyle.Render("API key:"),
			warningStyle.Render("missing (set NOVA_API_KEY)"))
	}

	fmt.Printf("  %s %s\n",
		infoStyle.Render("Model:"), app.Config.Gemini.DefaultModel)
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Persona:"), app.Config.Chat.DefaultPersona)

	fmt.Println()
	return nil
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

// readLine reads one line from stdin with a styled prompt.
func readLine(prompt string) (string, error) {
	fmt.Print(promptStyle.Render(prompt))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads a password without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Print(promptStyle.Render(prompt))
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(passBytes)), nil
}
