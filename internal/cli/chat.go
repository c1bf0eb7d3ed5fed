package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/classmate/internal/chat"
	"github.com/ashureev/classmate/internal/identity"
	"github.com/ashureev/classmate/internal/messaging"
)

func newChatCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot from the terminal",
		Long:  "Read messages from stdin, one per line, and print each reply. The account is created when missing. EOF ends the session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("address")
			return a.chat(cmd, raw)
		},
	}
	cmd.Flags().String("address", "", "Phone number to chat as")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func (a *app) chat(cmd *cobra.Command, raw string) error {
	ctx := cmd.Context()
	repo, err := a.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(repo)

	address, acct, err := identity.Resolve(ctx, repo, raw)
	if err != nil {
		return err
	}
	if acct == nil {
		acct, _, err = repo.CreateAccount(ctx, address)
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
	}

	d := chat.NewDispatcher(repo, chat.Config{
		Sender:             messaging.NewLogSender(a.logger),
		GenerationEstimate: a.cfg.Generation.Estimate,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatting as %s. Type /help for commands.\n", acct.Address)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		reply, err := d.Handle(ctx, acct.ID, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n\n", reply)
	}
	return scanner.Err()
}
