package main

import "github.com/isometry/entrysync/cmd"

func main() {
	cmd.Execute()
}
