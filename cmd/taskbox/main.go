package main

import "github.com/jmcleod/taskbox/cmd/taskbox/cmd"

func main() {
	cmd.Execute()
}
