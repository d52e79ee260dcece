package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

func success(format string, args ...interface{}) {
	successColor.Fprintf(os.Stdout, "✔ "+format+"\n", args...)
}

func failure(format string, args ...interface{}) {
	failureColor.Fprintf(os.Stderr, "✘ "+format+"\n", args...)
}

func info(format string, args ...interface{}) {
	infoColor.Fprintf(os.Stdout, format+"\n", args...)
}

func field(name string, value interface{}) {
	fmt.Fprintf(os.Stdout, "  %-16s %v\n", name+":", value)
}
