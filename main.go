package main

import "github.com/noustack/nous/cmd"

func main() {
	cmd.Execute()
}
