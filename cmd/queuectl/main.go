package main

import "github.com/TimKotowski/queuectl/internal/cli"

func main() {
	cli.Execute()
}
