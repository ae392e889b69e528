package main

import "pocketup/internal/cli"

func main() {
	cli.Execute()
}
