// Command mktoken issues an operator access token for the authenticated
// layout endpoints.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwtPkg "LayoutGolang/pkg/jwt"

	"github.com/joho/godotenv"
)

func main() {
	id := flag.String("id", "", "operator id to embed in the token")
	name := flag.String("name", "", "operator name to embed in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *id == "" || *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	token, expiredAt, err := jwtPkg.Sign(map[string]interface{}{
		"id":   *id,
		"name": *name,
	}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Unix(expiredAt, 0).Format(time.RFC3339))
}
