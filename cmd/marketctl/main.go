package main

import "github.com/Skotchmaster/marketfeed/cmd/marketctl/cmd"

func main() {
	cmd.Execute()
}
