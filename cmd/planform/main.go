package main

import "github.com/lexcodex/planform/app/cmd"

func main() {
	cmd.Execute()
}
