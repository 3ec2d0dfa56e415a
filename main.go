package main

import "github.com/clickrtraining/clickrtraining/cmd"

func main() {
	cmd.Execute()
}
