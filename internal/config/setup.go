package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsInteractiveTerminal reports whether both stdin and stdout are TTYs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard asks for the settings that can't be generated, generates the
// secrets, and saves everything to the config file. It returns false if the
// user aborted or saving failed.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Petition Web - First-time Setup"))
	fmt.Println()

	apiBaseURL := os.Getenv("API_BASE_URL")
	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend API URL").
				Description("Base URL of the petition platform API, e.g. https://api.example.com").
				Value(&apiBaseURL).
				Validate(validateBaseURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Google client ID (optional)").
				Description("Enables \"Sign in with Google\". Leave empty to disable.").
				Value(&googleClientID),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{"API_BASE_URL": apiBaseURL}
	if googleClientID != "" {
		values["GOOGLE_CLIENT_ID"] = googleClientID
	}
	for _, key := range []string{"SESSION_KEY", "SERVICE_TOKEN_SECRET"} {
		if os.Getenv(key) != "" {
			continue
		}
		secret, err := generateSecret()
		if err != nil {
			fmt.Printf("\nError generating %s: %v\n", key, err)
			return false
		}
		values[key] = secret
	}

	path, err := WriteEnvFile(values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		return false
	}
	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + path))
	fmt.Println()

	return true
}

func validateBaseURL(s string) error {
	if s == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
