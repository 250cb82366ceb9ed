package main

import "github.com/strangelove-ventures/custodian/cmd"

func main() {
	cmd.Execute()
}
