package main

import "github.com/sensorhub/onboarding/cmd"

func main() {
	cmd.Execute()
}
