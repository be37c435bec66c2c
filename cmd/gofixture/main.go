package main

import "github.com/dbsmedya/gofixture/cmd/gofixture/cmd"

func main() {
	cmd.Execute()
}
