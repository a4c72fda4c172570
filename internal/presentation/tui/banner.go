package tui

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// PrintBanner outputs the graft ASCII art banner with the running version.
// When stdout is not a terminal the banner collapses to a single plain line.
func PrintBanner(version string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("graft %s\n", version)
		return
	}

	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Emerald/Blue)
	s1 := termenv.String("   _____  _____            ______  _______ ").Foreground(p.Color("#34d399"))
	s2 := termenv.String("  / ____||  __ \\     /\\   |  ____||__   __|").Foreground(p.Color("#2dd4bf"))
	s3 := termenv.String(" | |  __ | |__) |   /  \\  | |__      | |   ").Foreground(p.Color("#22d3ee"))
	s4 := termenv.String(" | | |_ ||  _  /   / /\\ \\ |  __|     | |   ").Foreground(p.Color("#38bdf8"))
	s5 := termenv.String(" | |__| || | \\ \\  / ____ \\| |        | |   ").Foreground(p.Color("#60a5fa"))
	s6 := termenv.String("  \\_____||_|  \\_\\/_/    \\_\\|_|       |_|   ").Foreground(p.Color("#818cf8"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(s6)
	fmt.Println()
	fmt.Println(termenv.String("  v" + version).Faint())
	fmt.Println()
}
