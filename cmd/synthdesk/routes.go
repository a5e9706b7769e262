package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/synthdesk/pkg/pages"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATTERN\tCOMPONENT\tTITLE\tACCESS")
			for _, r := range pages.Routes() {
				access := "public"
				switch {
				case r.Meta.RequiresAdmin:
					access = "admin"
				case r.Meta.RequiresAuth:
					access = "signed in"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Pattern, r.Component, r.Meta.Title, access)
			}
			return w.Flush()
		},
	}
}
