package main

import (
	"os"

	"github.com/zhangwt/voltrend/backend/cmd/voltrend/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
