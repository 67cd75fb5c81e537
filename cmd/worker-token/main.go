// Command worker-token mints a signed bearer token that a generation worker
// presents when reporting task status.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/reigh-app/reigh-api/internal/api/middleware"
	"github.com/reigh-app/reigh-api/internal/config"
)

// secretEnv is the variable the server reads auth.worker_token_secret from.
const secretEnv = config.EnvPrefix + "_AUTH_WORKER_TOKEN_SECRET"

func main() {
	subject := flag.String("worker", "", "Worker identifier embedded as the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	secret := flag.String("secret", "", "Signing secret (defaults to "+secretEnv+")")
	flag.Parse()

	if *subject == "" {
		log.Fatal("worker-token: -worker is required")
	}

	// Best effort; configuration may come from the environment alone.
	_ = godotenv.Load()

	if *secret == "" {
		*secret = os.Getenv(secretEnv)
	}

	token, err := middleware.NewWorkerAuth(*secret).IssueToken(*subject, *ttl)
	if err != nil {
		log.Fatalf("worker-token: %v", err)
	}
	fmt.Println(token)
}
