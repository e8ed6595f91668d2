package main

import "github.com/pders01/repowatch/cmd"

func main() {
	cmd.Execute()
}
