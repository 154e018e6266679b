// session-probe signs in against a backend and walks a token pair through its
// lifecycle: read, forced refresh, rotation check and logout. Useful when
// pointing the server at a new backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/config"
	"github.com/raine/petition-web/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	config.LoadEnvFile()

	baseURL := flag.String("api", os.Getenv("API_BASE_URL"), "backend base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", os.Getenv("PROBE_PASSWORD"), "account password")
	flag.Parse()

	if *baseURL == "" || *email == "" || *password == "" {
		fmt.Println("Usage: session-probe -api URL -email EMAIL [-password PASSWORD]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := probe(ctx, *baseURL, *email, *password); err != nil {
		log.Fatal().Err(err).Msg("probe failed")
	}
	fmt.Println("\nAll checks passed")
}

func probe(ctx context.Context, baseURL, email, password string) error {
	client := api.NewClient(api.ClientOpts{BaseURL: baseURL})
	manager := session.NewManager(client)
	sess := manager.Bind(session.NewMemoryStore())

	fmt.Println("=== Sign in ===")
	tokens, err := client.SignIn(ctx, api.SignInRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if err := sess.Store(ctx, session.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}); err != nil {
		return err
	}
	fmt.Printf("Access token:  %s...\n", truncate(tokens.AccessToken))
	fmt.Printf("Refresh token: %s...\n", truncate(tokens.RefreshToken))

	fmt.Println("\n=== Current user ===")
	access, ok := sess.ReadAccessToken(ctx)
	if !ok {
		return errors.New("session empty right after sign in")
	}
	user, err := client.Me(ctx, access)
	if err != nil {
		return fmt.Errorf("me: %w", err)
	}
	fmt.Printf("User: %s (%s)\n", user.Email, user.ID)

	fmt.Println("\n=== Forced refresh ===")
	rotated, err := sess.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Printf("New access token:  %s...\n", truncate(rotated.AccessToken))
	fmt.Printf("Refresh token rotated: %t\n", rotated.RefreshToken != tokens.RefreshToken)

	fmt.Println("\n=== Old refresh token ===")
	if _, err := client.RefreshToken(ctx, tokens.RefreshToken); err == nil {
		fmt.Println("WARNING: backend still accepts the previous refresh token")
	} else {
		fmt.Printf("Rejected as expected: %v\n", err)
	}

	fmt.Println("\n=== Logout ===")
	if err := client.Logout(ctx, rotated.AccessToken); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := sess.Clear(ctx); err != nil {
		return err
	}
	if _, err := client.Me(ctx, rotated.AccessToken); errors.Is(err, api.ErrUnauthorized) {
		fmt.Println("Access token revoked")
	} else {
		fmt.Println("WARNING: access token still works after logout")
	}
	return nil
}

func truncate(s string) string {
	return s[:min(16, len(s))]
}
