package main

import (
	"log"

	"github.com/thiagokokada/gitstage/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitstage: %v", err)
	}
}
