package main

import "latksync/cmd/latkctl/command"

func main() {
	command.Execute()
}
