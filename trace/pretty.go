package trace

import (
	"fmt"

	"github.com/fatih/color"
)

// PrettyHandler returns a Handler that prints each event to stdout with
// color-coded latency, the way the teacher colors relation cardinality.
func PrettyHandler() Handler {
	return func(e Event) {
		name := color.CyanString("%-28s", e.Name)
		var latency string
		switch {
		case e.Latency == 0:
			latency = color.WhiteString("--")
		case e.Latency.Milliseconds() < 5:
			latency = color.GreenString("%s", e.Latency)
		case e.Latency.Milliseconds() < 50:
			latency = color.YellowString("%s", e.Latency)
		default:
			latency = color.RedString("%s", e.Latency)
		}
		fmt.Printf("%s %s %v\n", name, latency, e.Data)
	}
}
