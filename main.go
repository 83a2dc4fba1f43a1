// Package main is the entry point for the job board service.
package main

import "jobboard/cmd"

func main() {
	cmd.Execute()
}
