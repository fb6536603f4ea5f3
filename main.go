package main

import "github.com/hbctl/hbctl/cmd"

func main() {
	cmd.Execute()
}
