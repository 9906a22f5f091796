package main

import (
	"os"

	"github.com/wayfinder-paths/adapter-runtime/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
