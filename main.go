package main

import (
	"os"

	"github.com/xiaoyuanzhu-com/local-first-todo/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
