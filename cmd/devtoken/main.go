// Command devtoken mints an HS256 access token for local testing of the
// booking API. The secret defaults to JWT_SECRET from the environment or
// a .env file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/utsavlook/booking-functions/internal/model"
	"github.com/utsavlook/booking-functions/internal/utils"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "caller id placed in the sub claim (required)")
	role := flag.String("role", string(model.RoleCustomer), "CUSTOMER, ARTIST or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	flag.Parse()

	if *sub == "" || *secret == "" {
		flag.Usage()
		os.Exit(2)
	}
	r := model.Role(strings.ToUpper(*role))
	switch r {
	case model.RoleCustomer, model.RoleArtist, model.RoleAdmin:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	tok, err := utils.NewAccessToken(*secret, *sub, string(r), *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}
