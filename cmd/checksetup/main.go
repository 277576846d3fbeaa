// checksetup verifies deployment configuration before the service goes live:
// environment variables, config parsing, token signing, and URL shape.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/token"
)

var requiredVars = []string{
	"LIVEKIT_URL",
	"LIVEKIT_API_KEY",
	"LIVEKIT_API_SECRET",
	"DEEPGRAM_API_KEY",
	"OPENAI_API_KEY",
	"CARTESIA_API_KEY",
}

func main() {
	_ = godotenv.Load()

	fmt.Println("checking voxgate setup...")
	failed := false

	fmt.Println("\n1. environment variables")
	var missing []string
	for _, name := range requiredVars {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			fmt.Printf("   FAIL %s: not set\n", name)
			missing = append(missing, name)
			continue
		}
		fmt.Printf("   ok   %s: %s\n", name, mask(value))
	}
	if len(missing) > 0 {
		failed = true
	}

	fmt.Println("\n2. configuration")
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("   FAIL config: %v\n", err)
		fail()
	}
	fmt.Printf("   ok   listen address: %s\n", cfg.BindAddr())
	fmt.Printf("   ok   livekit configured: %v\n", cfg.LiveKitConfigured())

	fmt.Println("\n3. token generation")
	if cfg.LiveKitConfigured() {
		issuer := token.NewIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
		tok, err := issuer.IssueAgent("test-room", "test-agent")
		switch {
		case err != nil:
			fmt.Printf("   FAIL issue agent token: %v\n", err)
			failed = true
		case len(tok) <= 20:
			fmt.Printf("   FAIL agent token looks invalid (%d bytes)\n", len(tok))
			failed = true
		default:
			claims, err := token.Verify(tok, cfg.LiveKitAPISecret)
			if err != nil {
				fmt.Printf("   FAIL verify agent token: %v\n", err)
				failed = true
			} else if !claims.Agent || claims.Room != "test-room" {
				fmt.Printf("   FAIL token grants wrong: %+v\n", claims)
				failed = true
			} else {
				fmt.Println("   ok   agent token signs and verifies")
			}
		}
	} else {
		fmt.Println("   skip (livekit credentials missing)")
	}

	fmt.Println("\n4. livekit url format")
	switch {
	case cfg.LiveKitURL == "":
		fmt.Println("   skip (LIVEKIT_URL not set)")
	case strings.HasPrefix(cfg.LiveKitURL, "wss://"):
		fmt.Printf("   ok   %s\n", cfg.LiveKitURL)
	default:
		fmt.Printf("   WARN LIVEKIT_URL should start with wss:// (got %q)\n", cfg.LiveKitURL)
	}

	fmt.Println()
	if failed {
		fmt.Println("setup incomplete")
		if len(missing) > 0 {
			fmt.Printf("set these environment variables: %s\n", strings.Join(missing, ", "))
		}
		os.Exit(1)
	}
	fmt.Println("all checks passed")
}

func mask(value string) string {
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}

func fail() {
	fmt.Println("\nsetup incomplete")
	os.Exit(1)
}
