package main

import "github.com/toolrelay/toolrelay/cmd"

func main() {
	cmd.Execute()
}
