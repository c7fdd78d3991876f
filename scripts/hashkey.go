//go:build ignore

// Generates the bcrypt hash of the service API key for the
// API_KEY_HASH environment variable (or an API_KEY_HASH_FILE secret).
// Run with: go run scripts/hashkey.go
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	key, err := readKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nShell / compose environment:")
	fmt.Printf("  API_KEY_HASH='%s'\n", hash)

	// In a Makefile every $ must be doubled
	fmt.Println("\nMakefile:")
	fmt.Printf("  export API_KEY_HASH=%s\n", strings.ReplaceAll(string(hash), "$", "$$"))
}

func readKey() (string, error) {
	// A key passed as the first argument wins; otherwise prompt
	if len(os.Args) > 1 {
		key := strings.TrimSpace(os.Args[1])
		if key == "" {
			return "", fmt.Errorf("API key cannot be empty")
		}
		return key, nil
	}

	fmt.Print("Enter API key: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}
	return key, nil
}
