package main

import "github.com/park285/Cheese-Ladder-bot/internal/cli"

func main() {
	cli.Execute()
}
