package main

import (
	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("Application failed: %v", err)
	}
}
