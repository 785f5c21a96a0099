package main

import (
	"os"

	"pomodoro/daemon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
