package main

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	dim    = color.New(color.FgHiBlack).SprintFunc()
)

func disableColor() {
	color.NoColor = true
}

// riskColor shades a confidence percentage
func riskColor(confidence int) func(a ...interface{}) string {
	switch {
	case confidence >= 70:
		return red
	case confidence >= 40:
		return yellow
	default:
		return green
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%5.1f%%", v*100)
}
