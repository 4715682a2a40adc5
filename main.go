package main

import "hrhelp/messenger-relay/pkgs/cli"

func main() {
	cli.RunCLI()
}
