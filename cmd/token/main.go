package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
)

// token prints a bearer token the shop API accepts, for local testing.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	userID := flag.Int64("user", 1, "user id")
	email := flag.String("email", "user@example.com", "user email")
	ttl := flag.Duration("ttl", utils.DurationWithFallback("ACCESS_TTL", time.Hour), "token lifetime")
	flag.Parse()

	secret := utils.ParseWithFallback("ACCESS_SECRET", "")
	if secret == "" {
		log.Fatal("ACCESS_SECRET is not set")
	}

	token, err := utils.GenerateAccessToken(secret, *userID, *email, *ttl)
	if err != nil {
		log.Fatalf("error generating token: %v", err)
	}

	fmt.Fprintln(os.Stdout, token)
}
