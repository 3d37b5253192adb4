//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/carmasterapp/car-master/internal/util"
)

// Prints a fresh admin token and its bcrypt hash. Pass a token to hash it instead.
func main() {
	token := ""
	if len(os.Args) >= 2 {
		token = os.Args[1]
	} else {
		generated, err := util.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		token = generated
		fmt.Printf("ADMIN_TOKEN=%s\n", token)
	}

	hash, err := util.HashSecret(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hash)
}
