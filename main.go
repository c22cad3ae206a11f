package main

import "concierge/cmd"

func main() {
	cmd.Execute()
}
