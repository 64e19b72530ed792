// Package console implements the two interactive surfaces the spec's
// concurrency model calls out as external collaborators run on a
// dedicated goroutine: the master's candidate-slave prompt during
// pairing, and the display's in-place row table for decoded
// telemetry. Neither blocks the pairing timer or the message loop
// that feeds it, per §5's "blocking console prompts run on a
// dedicated thread" rule.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hardenmqtt/harden-mqtt-go/dispatch"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/pairing"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
)

// SelectSlave prompts the operator to choose one of the observed
// candidates by number, reading from in and writing the prompt to
// out. It reprompts on a malformed or out-of-range entry. Wired as a
// pairing.Config.SelectSlave value, it is invoked from the engine's
// own dedicated selection goroutine rather than the republish timer.
func SelectSlave(in io.Reader, out io.Writer) func([]pairing.Candidate) int {
	reader := bufio.NewReader(in)
	return func(candidates []pairing.Candidate) int {
		fmt.Fprintln(out, "Pairing: candidate slaves observed on HardenMqtt/Pairing:")
		for i, c := range candidates {
			fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, c.ID, identity.EncodePublicKey(c.PublicKey))
		}
		for {
			fmt.Fprint(out, "Select a device to pair with: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return 0
			}
			choice, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil || choice < 1 || choice > len(candidates) {
				fmt.Fprintf(out, "Enter a number between 1 and %d.\n", len(candidates))
				continue
			}
			return choice - 1
		}
	}
}

// PromptSelectSlave is a convenience wrapper over SelectSlave reading
// from os.Stdin and writing to os.Stdout, the form cmd/sensor wires in.
func PromptSelectSlave() func([]pairing.Candidate) int {
	return SelectSlave(os.Stdin, os.Stdout)
}

// Table renders a snapshot of dispatch rows as a fixed-width,
// in-place-updating console table: it clears the previously printed
// block and reprints it, so repeated calls overwrite rather than
// scroll, matching the "track row positions for in-place console
// updates" responsibility of the receiver dispatcher.
type Table struct {
	out       io.Writer
	lastLines int
}

// NewTable creates a Table writing to out.
func NewTable(out io.Writer) *Table {
	return &Table{out: out}
}

// Render clears the previous frame and prints the given rows sorted
// by key, one line per row.
func (t *Table) Render(rows []dispatch.Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

	for i := 0; i < t.lastLines; i++ {
		fmt.Fprint(t.out, "\033[1A\033[2K")
	}

	for _, row := range rows {
		if row.Err != nil {
			fmt.Fprintf(t.out, "%-28s %-20s dropped: %s\n", row.Key, row.Presentation, row.Err)
			continue
		}
		fmt.Fprintf(t.out, "%-28s %-20s %s\n", row.Key, row.Presentation, formatFields(row.Fields))
	}
	t.lastLines = len(rows)
}

// formatFields renders a decoded field slice as the comma-joined
// "Name=value" pairs a single console row shows.
func formatFields(fields []sensordata.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+"="+f.Value.String())
	}
	return strings.Join(parts, ", ")
}
