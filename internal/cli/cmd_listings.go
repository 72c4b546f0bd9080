package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchTipo string

func init() {
	searchCmd.Flags().StringVar(&searchTipo, "tipo", "", "filter by listing type (LIBRO or APUNTES)")
	rootCmd.AddCommand(searchCmd, listingCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search published books and study notes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		listings, err := current.api.SearchListings(cmd.Context(), query, strings.ToUpper(searchTipo))
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			fmt.Println("No listings found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIPO\tTITULO\tCURSO")
		for _, l := range listings {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.ID, l.Tipo, l.Titulo, l.Curso)
		}
		return w.Flush()
	},
}

var listingCmd = &cobra.Command{
	Use:   "listing <id>",
	Short: "Show one listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid listing id %q", args[0])
		}
		l, err := current.api.GetListing(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("#%d [%s] %s\n", l.ID, l.Tipo, l.Titulo)
		if l.Autor != "" {
			fmt.Println("Author:", l.Autor)
		}
		if l.Curso != "" {
			fmt.Println("Course:", l.Curso)
		}
		if l.Descripcion != "" {
			fmt.Println(l.Descripcion)
		}
		return nil
	},
}
