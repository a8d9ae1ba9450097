package main

import (
	"os"

	"tenant-backup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
