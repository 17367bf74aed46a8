package main

import "github.com/brogergvhs/mangacrawl/cmd"

func main() {
	cmd.Execute()
}
