package main

import "github.com/agentic-research/buildverify/cmd"

func main() {
	cmd.Execute()
}
