package main

import "github.com/soquetic/soquetic-go/cmd/soquetic/command"

func main() {
	command.Execute()
}
