package main

import (
	"log"
	"os"

	"github.com/dmitrijs2005/relaytale/internal/devtoken"
)

func main() {
	if err := devtoken.Run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
