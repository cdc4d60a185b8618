package main

import (
	"github.com/floralens/identify/internal/runtime"
)

func main() {
	runtime.New().Run()
}
