package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/erp/customerdir/internal/application/listsync"
)

// render writes the view of a list state
func render(w io.Writer, state listsync.State) error {
	switch s := state.(type) {
	case listsync.Idle:
		_, err := fmt.Fprintln(w, "Customer list not loaded yet")
		return err
	case listsync.Loading:
		_, err := fmt.Fprintln(w, "Loading customers...")
		return err
	case listsync.Empty:
		_, err := fmt.Fprintln(w, "No customers available")
		return err
	case listsync.Error:
		_, err := fmt.Fprintf(w, "Ooops there was an error: %s\n", s.Message)
		return err
	case listsync.Loaded:
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Name", "Email", "Age", "Gender")
		rows := make([][]string, 0, len(s.Records))
		for _, r := range s.Records {
			rows = append(rows, []string{
				r.ID.String(),
				r.Name,
				r.Email,
				strconv.Itoa(r.Age),
				string(r.Gender),
			})
		}
		if err := table.Bulk(rows); err != nil {
			return err
		}
		return table.Render()
	default:
		return fmt.Errorf("unknown list state %T", state)
	}
}
