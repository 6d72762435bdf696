// Package main is the entry point for TokenGate.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real env vars win over file values.
	_ = godotenv.Load()

	Execute()
}
