// Command devtoken signs a viewer token for local development against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"farmtrace/marketplace-backend/internal/auth"
	"farmtrace/marketplace-backend/internal/config"
	"farmtrace/marketplace-backend/internal/viewer"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "path to the JSON config file")
		id         = flag.String("id", "", "user id (token subject)")
		name       = flag.String("name", "", "display name")
		role       = flag.String("role", "BUYER", "FARMER, BUYER or ADMIN")
		level      = flag.String("level", "", "admin level: REGIONAL or CENTRAL")
		area       = flag.String("area", "", "assigned area of a regional admin")
		ttl        = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()
	_ = godotenv.Load()

	if *id == "" {
		fail("-id is required")
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fail(err.Error())
	}
	v, err := viewer.FromClaims(viewer.Claims{
		ID:           *id,
		Name:         *name,
		Role:         *role,
		AdminLevel:   *level,
		AssignedArea: *area,
	})
	if err != nil {
		fail(err.Error())
	}

	token, err := auth.NewTokenService(cfg.Security.JWTSecret, cfg.Security.Issuer).Issue(v, *ttl)
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(token)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "devtoken:", msg)
	os.Exit(2)
}
