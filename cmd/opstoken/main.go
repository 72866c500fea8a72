// Command opstoken mints a bearer token for the operations API.
//
//	OPS_JWT_SECRET=... opstoken -operator oncall -ttl 12h
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chuikova-e/nutritioner-bot/internal/auth"
	"github.com/chuikova-e/nutritioner-bot/internal/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	operator := flag.String("operator", "", "operator name stored in the token subject")
	ttl := flag.Duration("ttl", auth.DefaultTTL, "token lifetime")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatal(err)
	}
	if cfg.Ops.JWTSecret == "" {
		fatal(fmt.Errorf("OPS_JWT_SECRET is not set"))
	}

	tokens, err := auth.NewTokenService(cfg.Ops.JWTSecret)
	if err != nil {
		fatal(err)
	}
	token, err := tokens.Generate(*operator, *ttl)
	if err != nil {
		fatal(err)
	}
	fmt.Println(token)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "opstoken:", err)
	os.Exit(1)
}
