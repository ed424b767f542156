// Package main is the entry point for the shimbuild CLI.
package main

import (
	"os"

	"github.com/AndreyAkinshin/shimbuild/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
