package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mimic/internal/companion"
)

func newChatCmd(a *app) *cobra.Command {
	var chatName, sender, respondAs, model string
	var temperature float64

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a model fine-tuned on the dataset",
		Long: `chat talks to a completion model fine-tuned on the dataset. You type as
--sender and the model answers as --respond-as, inside the chat named
--chat-name (defaults to the sender, as in a direct message).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := a.cfg.Companion
			if chatName != "" {
				cc.ChatName = chatName
			}
			if sender != "" {
				cc.Sender = sender
			}
			if respondAs != "" {
				cc.RespondAs = respondAs
			}
			if model != "" {
				cc.Model = model
			}
			if cc.ChatName == "" {
				cc.ChatName = cc.Sender
			}
			if cmd.Flags().Changed("temperature") {
				cc.Temperature = temperature
			}

			cfg := companion.Config{
				BaseURL:     cc.BaseURL,
				APIKey:      cc.APIKey,
				Model:       cc.Model,
				ChatName:    cc.ChatName,
				Sender:      cc.Sender,
				RespondAs:   cc.RespondAs,
				MaxTokens:   cc.MaxTokens,
				Temperature: &cc.Temperature,
			}

			catalog, err := companion.LoadCatalog(a.cfg.DataDir)
			if err != nil {
				return err
			}
			if err := catalog.Validate(cfg); err != nil {
				return err
			}

			session, err := companion.NewSession(cfg, companion.NewClient(cfg))
			if err != nil {
				return err
			}
			return chatLoop(cmd, session, cfg)
		},
	}

	cmd.Flags().StringVar(&chatName, "chat-name", "", "chat the conversation happens in")
	cmd.Flags().StringVar(&sender, "sender", "", "person you are typing as")
	cmd.Flags().StringVar(&respondAs, "respond-as", "", "person the model replies as")
	cmd.Flags().StringVar(&model, "model", "", "completion model (default from COMPLETION_MODEL)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature; 0 picks the most likely token")
	return cmd
}

func chatLoop(cmd *cobra.Command, session *companion.Session, cfg companion.Config) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprintf(out, "\n%s: ", cfg.Sender)
		if !in.Scan() {
			return in.Err()
		}
		input := strings.TrimSpace(in.Text())
		if input == "" {
			continue
		}

		reply, err := session.Reply(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintf(out, "\n%s: %s\n", cfg.RespondAs, reply)
	}
}
