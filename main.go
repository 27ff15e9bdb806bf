package main

import "case-mirror/cmd"

func main() {
	cmd.Execute()
}
