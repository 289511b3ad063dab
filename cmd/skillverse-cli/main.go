package main

import "github.com/M-Shameel-375/skill-verse-sub001/cmd/skillverse-cli/cmd"

func main() {
	cmd.Execute()
}
