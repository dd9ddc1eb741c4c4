package main

import "github.com/lKakarot/phone-cleaner/cmd"

func main() {
	cmd.Execute()
}
