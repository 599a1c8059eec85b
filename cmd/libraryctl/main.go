package main

import "github.com/noah-isme/research-library-api/cmd/libraryctl/cmd"

func main() {
	cmd.Execute()
}
