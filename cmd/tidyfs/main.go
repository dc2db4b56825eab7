package main

import (
	"os"

	"tidyfs/cmd/tidyfs/commands"
)

func main() {
	os.Exit(commands.Execute())
}
