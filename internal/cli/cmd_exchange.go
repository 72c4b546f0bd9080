package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	exchangeCmd.AddCommand(exchangeRequestCmd, exchangeListCmd, exchangeAcceptCmd, exchangeRejectCmd)
	rootCmd.AddCommand(exchangeCmd)
}

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Manage exchange requests",
}

var exchangeRequestCmd = &cobra.Command{
	Use:   "request <listing-id>",
	Short: "Request an exchange for a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listingID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid listing id %q", args[0])
		}
		ex, err := current.api.CreateExchange(cmd.Context(), listingID)
		if err != nil {
			return err
		}
		fmt.Printf("Exchange #%d requested (%s).\n", ex.ID, ex.Estado)
		return nil
	},
}

var exchangeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your exchange requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exchanges, err := current.api.ListExchanges(cmd.Context())
		if err != nil {
			return err
		}
		if len(exchanges) == 0 {
			fmt.Println("No exchanges.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPUBLICACION\tESTADO\tFECHA")
		for _, ex := range exchanges {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", ex.ID, ex.PublicacionID, ex.Estado, ex.Fecha.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var exchangeAcceptCmd = &cobra.Command{
	Use:   "accept <id>",
	Short: "Accept an incoming exchange request",
	Args:  cobra.ExactArgs(1),
	RunE:  exchangeDecision("accepted", func(id int64, cmd *cobra.Command) error { return current.api.AcceptExchange(cmd.Context(), id) }),
}

var exchangeRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject an incoming exchange request",
	Args:  cobra.ExactArgs(1),
	RunE:  exchangeDecision("rejected", func(id int64, cmd *cobra.Command) error { return current.api.RejectExchange(cmd.Context(), id) }),
}

func exchangeDecision(verb string, call func(int64, *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid exchange id %q", args[0])
		}
		if err := call(id, cmd); err != nil {
			return err
		}
		fmt.Printf("Exchange #%d %s.\n", id, verb)
		return nil
	}
}
