// Command admintoken prints a bearer token for the admin API, signed with
// JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iliyamo/cinema-seat-server/internal/config"
	"github.com/iliyamo/cinema-seat-server/internal/middleware"
	"github.com/iliyamo/cinema-seat-server/internal/utils"
)

var (
	subject = flag.String("sub", "admin-cli", "token subject")
	ttl     = flag.Int("ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
)

func main() {
	flag.Parse()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	minutes := cfg.AccessTTLMin
	if *ttl > 0 {
		minutes = *ttl
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *subject, middleware.RoleAdmin, minutes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
}
