package main

import "github.com/avermeulen/confsync/internal/cli"

func main() {
	cli.Execute()
}
