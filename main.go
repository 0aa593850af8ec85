package main

import (
	"os"

	"github.com/rtk-mem/rtk-mem/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
