package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/arnavshah/staff-scheduler-api/pkg/auth"
	"github.com/arnavshah/staff-scheduler-api/pkg/config"
)

// keygen prints the API key for a client name. Keys only authenticate once
// an admin has registered them through POST /admin/keys with the same name.
func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <client-name>")
		os.Exit(1)
	}

	name := strings.TrimSpace(os.Args[1])
	if name == "" || strings.Contains(name, ".") {
		fmt.Println("Error: client name must be non-empty and must not contain '.'")
		os.Exit(1)
	}
	secret := os.Getenv("API_MASTER_SECRET")
	if secret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in environment or .env")
		os.Exit(1)
	}

	fmt.Printf("Generated Key for %s:\n%s\n", name, auth.GenerateHMACKey(secret, name))
}
