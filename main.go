package main

import "github.com/ggstore/ggcrawl/cmd"

func main() {
	cmd.Execute()
}
