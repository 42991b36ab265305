package main

import (
	"os"

	tgrelaycmder "github.com/papercomputeco/tgrelay/cmd/tgrelay"
)

func main() {
	cmd := tgrelaycmder.NewTgrelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
