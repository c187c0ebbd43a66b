package main

import (
	"fmt"
	"os"

	"image_gateway/internal/auth"
)

// hashkey prints the bcrypt hash of an admin key for use as
// ADMIN_KEY_HASH. Usage: hashkey <key>
func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: hashkey <admin-key>")
		os.Exit(1)
	}

	hash, err := auth.HashAdminKey(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
