package main

import "github.com/loupelabs/loupe/cmd"

func main() {
	cmd.Execute()
}
