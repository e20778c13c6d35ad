package main

import (
	"log"

	"github.com/MrSnakeDoc/together/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		log.Fatalf("❌ together: %v", err)
	}
}
