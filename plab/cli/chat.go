package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"personalab/plab/chat"
	"personalab/plab/db"
	ports "personalab/plab/engine/ports"
)

func newChatCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat with all personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			personas := a.personas.List()
			if len(personas) == 0 {
				return fmt.Errorf("no personas yet; create one with 'persona-lab persona new <occupation>'")
			}

			var transcripts *chat.TranscriptStore
			var conversation []ports.Message
			if a.cfg.Chat.Transcripts {
				conn, err := db.Connect(a.cfg.Storage.TranscriptDB)
				if err != nil {
					a.logger.Warn().Err(err).Msg("transcript persistence disabled")
				} else {
					defer conn.Close()
					if transcripts, err = chat.NewTranscriptStore(conn); err != nil {
						a.logger.Warn().Err(err).Msg("transcript persistence disabled")
						transcripts = nil
					}
				}
			}
			if session == "" {
				session = uuid.NewString()
			} else if transcripts != nil {
				if prior, err := transcripts.RecentTurns(cmd.Context(), session, a.cfg.Chat.HistoryWindow); err == nil {
					conversation = prior
				}
			}

			fmt.Printf("Chatting with %d persona(s). Type a message, or /quit to exit.\n", len(personas))
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/quit" || line == "/exit" {
					return nil
				}

				userMsg := ports.Message{Role: "user", Content: line, Name: "You"}
				replies := a.service.Broadcast(cmd.Context(), personas, conversation, line)

				conversation = appendWindowed(conversation, userMsg, a.cfg.Chat.HistoryWindow)
				saveTurn(cmd, transcripts, session, userMsg, a)

				for _, reply := range replies {
					fmt.Printf("\n%s: %s\n", reply.Persona.Name, reply.Text)
					if reply.Err != nil {
						continue
					}
					msg := ports.Message{Role: "assistant", Content: reply.Text, Name: reply.Persona.Name}
					conversation = appendWindowed(conversation, msg, a.cfg.Chat.HistoryWindow)
					saveTurn(cmd, transcripts, session, msg, a)
				}
				fmt.Println()
			}
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "resume a named transcript session")
	return cmd
}

func appendWindowed(conversation []ports.Message, msg ports.Message, window int) []ports.Message {
	conversation = append(conversation, msg)
	if window > 0 && len(conversation) > window {
		conversation = conversation[len(conversation)-window:]
	}
	return conversation
}

func saveTurn(cmd *cobra.Command, transcripts *chat.TranscriptStore, session string, msg ports.Message, a *app) {
	if transcripts == nil {
		return
	}
	if err := transcripts.SaveTurn(cmd.Context(), session, msg); err != nil {
		a.logger.Warn().Err(err).Msg("could not save transcript turn")
	}
}
