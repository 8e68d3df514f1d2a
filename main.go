package main

import "github.com/bryan-buckman/infowatch/cmd"

func main() {
	cmd.Execute()
}
