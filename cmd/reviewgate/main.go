package main

import (
	_ "golang.org/x/crypto/x509roots/fallback"
)

// Set by release ldflags.
var version = "dev"

func main() {
	Execute()
}
