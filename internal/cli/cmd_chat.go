package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/trueque/internal/models"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat <chat-id>",
	Short: "Open a chat: stream incoming messages, send lines from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", args[0])
		}
		ctx := cmd.Context()

		me, err := current.api.Me(ctx)
		if err != nil {
			return err
		}

		history, err := current.api.ChatMessages(ctx, chatID)
		if err != nil {
			return err
		}
		for _, m := range history {
			printChatMessage(m)
		}

		ch := current.newChannel()
		defer ch.CloseAll()
		closeFn := ch.OpenChat(chatID, printChatMessage)
		defer closeFn()

		fmt.Println("-- type a message and press enter; /quit to leave --")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				break
			}
			ch.Send(chatID, me.Nombre, line)
		}
		return scanner.Err()
	},
}

func printChatMessage(m models.ChatMessage) {
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.Format("15:04 ")
	}
	fmt.Printf("%s%s: %s\n", ts, m.Sender, m.Content)
}
