package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/trueque/internal/models"
	"github.com/user/trueque/internal/realtime"
)

func init() {
	notificationsCmd.AddCommand(notificationsListCmd, notificationsDeleteCmd, notificationsWatchCmd)
	rootCmd.AddCommand(notificationsCmd)
}

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List, delete and watch notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := current.api.Notifications(cmd.Context())
		if err != nil {
			return err
		}
		printNotifications(list)
		return nil
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", args[0])
		}
		if err := current.api.DeleteNotification(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Notification #%d deleted.\n", id)
		return nil
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		me, err := current.api.Me(ctx)
		if err != nil {
			return err
		}

		feed := &notificationFeed{app: current}
		if err := feed.reload(cmd); err != nil {
			return err
		}

		ch := current.newChannel()
		defer ch.CloseAll()
		closeFn := ch.OpenNotifications(me.ID, func(ev realtime.Event) { feed.apply(cmd, ev) })
		defer closeFn()

		fmt.Println("Watching notifications (Ctrl-C to stop)...")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-sig:
		case <-ctx.Done():
		}
		return nil
	},
}

// notificationFeed mirrors the server-side notification list locally and
// applies pushed events to it.
type notificationFeed struct {
	app *app

	mu   sync.Mutex
	list []models.Notification
}

func (f *notificationFeed) reload(cmd *cobra.Command) error {
	list, err := f.app.api.Notifications(cmd.Context())
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.list = list
	f.mu.Unlock()
	printNotifications(list)
	return nil
}

func (f *notificationFeed) apply(cmd *cobra.Command, ev realtime.Event) {
	f.mu.Lock()
	updated, refetch := ev.ApplyToList(f.list)
	f.list = updated
	f.mu.Unlock()

	if refetch {
		if err := f.reload(cmd); err != nil {
			f.app.log.Warn("could not refresh notification list", zap.Error(err))
		}
		return
	}

	switch ev.Kind {
	case realtime.EventNotification:
		n := ev.Notification
		fmt.Printf("[%s] #%d %s - %s\n", n.Tipo, n.ID, n.Titulo, n.Mensaje)
	case realtime.EventNotificationDeleted:
		fmt.Printf("(notification #%d removed)\n", ev.DeletedID)
	}
}

func printNotifications(list []models.Notification) {
	if len(list) == 0 {
		fmt.Println("No notifications.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIPO\tTITULO\tFECHA")
	for _, n := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ID, n.Tipo, n.Titulo, n.Fecha.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
