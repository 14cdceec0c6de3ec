package main

import "github.com/RyanBlaney/genre-classifier/cmd"

func main() {
	cmd.Execute()
}
