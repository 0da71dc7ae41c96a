package main

import "github.com/thelorax67/HackClub-Events-Radar/cmd"

func main() {
	cmd.Execute()
}
