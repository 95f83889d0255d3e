package main

import "github.com/justtrance-web/artvision-tg-bot/pkg/cli"

func main() {
	cli.Execute()
}
