package main

import "github.com/nfrund/topicrelay/cmd/topicrelay/cmd"

func main() {
	cmd.Execute()
}
