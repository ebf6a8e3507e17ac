package main

import (
	"os"

	"github.com/joho/godotenv"
	cliruntime "github.com/tomasbasham/cli-runtime"

	"github.com/tendant/simple-photo-pipeline/internal/cmd"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	command := cmd.NewRootCommand()
	if code := cliruntime.Run(command); code != 0 {
		os.Exit(code)
	}
}
