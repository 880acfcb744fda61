package main

import "github.com/imagespy/inspect/cmd"

func main() {
	cmd.Execute()
}
