package commands

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamvox/realtime-go/pkg/cli"
	"github.com/streamvox/realtime-go/pkg/realtime"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Realtime session operations",
	Long: `Operate on realtime sessions: interactive chat, raw event
streaming, and ephemeral token minting.`,
}

// sessionRequest is the request file shape for session commands.
type sessionRequest struct {
	Model        string   `yaml:"model" json:"model"`
	Voice        string   `yaml:"voice" json:"voice"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Modalities   []string `yaml:"modalities" json:"modalities"`
	Temperature  *float64 `yaml:"temperature" json:"temperature"`
	DisableVAD   bool     `yaml:"disable_vad" json:"disable_vad"`
}

// resolveConnectConfig merges flags, the request file, and context defaults.
func resolveConnectConfig(cmd *cobra.Command, cctx *cli.Context) (*realtime.ConnectConfig, *sessionRequest, error) {
	var req sessionRequest
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, &req); err != nil {
			return nil, nil, err
		}
	}

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		req.Model = model
	}
	if voice, _ := cmd.Flags().GetString("voice"); voice != "" {
		req.Voice = voice
	}
	if instructions, _ := cmd.Flags().GetString("instructions"); instructions != "" {
		req.Instructions = instructions
	}
	if noVAD, _ := cmd.Flags().GetBool("no-vad"); noVAD {
		req.DisableVAD = true
	}

	if req.Model == "" {
		req.Model = cctx.Model
	}
	if req.Voice == "" {
		req.Voice = cctx.Voice
	}

	return &realtime.ConnectConfig{Model: req.Model, Voice: req.Voice}, &req, nil
}

// sessionConfigFrom builds the session.update payload for a request, or
// nil when the request carries nothing to update.
func sessionConfigFrom(req *sessionRequest) *realtime.SessionConfig {
	if req.Instructions == "" && len(req.Modalities) == 0 &&
		req.Temperature == nil && !req.DisableVAD {
		return nil
	}
	return &realtime.SessionConfig{
		Modalities:            req.Modalities,
		Instructions:          req.Instructions,
		Voice:                 req.Voice,
		Temperature:           req.Temperature,
		TurnDetectionDisabled: req.DisableVAD,
	}
}

var sessionTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an ephemeral session token",
	Long: `Mint a short-lived credential for one realtime connection.

The token can be handed to a browser or mobile client so the long-lived
API key never leaves the server.

Example:
  rtvoice -c myctx session token --model gpt-4o-realtime-preview --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cctx, err := newClient()
		if err != nil {
			return err
		}

		connectConfig, _, err := resolveConnectConfig(cmd, cctx)
		if err != nil {
			return err
		}

		token, err := client.CreateEphemeralToken(cmd.Context(), connectConfig)
		if err != nil {
			return err
		}

		return outputResult(token, outputFile, outputJSON)
	},
}

var sessionChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive text chat over a realtime session",
	Long: `Start an interactive chat: each input line becomes a user message
and triggers a model response. Text only; turn detection is disabled
since turns are delimited by the terminal.

Example:
  rtvoice -c myctx session chat --instructions "Answer briefly."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cctx, err := newClient()
		if err != nil {
			return err
		}

		connectConfig, req, err := resolveConnectConfig(cmd, cctx)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := client.ConnectWebSocket(ctx, connectConfig)
		if err != nil {
			return err
		}
		defer s.Close()

		// Turns come from the terminal, never from audio.
		req.DisableVAD = true
		if len(req.Modalities) == 0 {
			req.Modalities = []string{realtime.ModalityText}
		}
		if _, err := s.UpdateSession(ctx, sessionConfigFrom(req)); err != nil {
			return err
		}

		cli.PrintInfo("Connected (session %s). Ctrl-D to exit.", s.SessionID())

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := scanner.Text()
			if line == "" {
				continue
			}

			if _, err := s.AddUserMessage(ctx, line); err != nil {
				return err
			}

			start := time.Now()
			resp, acc, err := realtime.CollectResponse(ctx, s, &realtime.ResponseCreateOptions{
				Modalities: []string{realtime.ModalityText},
			})
			if err != nil {
				return err
			}

			for _, item := range resp.Output {
				text, err := acc.ItemText(item.ID)
				if err != nil {
					cli.PrintWarning("item %s: %v", item.ID, err)
					continue
				}
				if text != "" {
					fmt.Println(text)
				}
			}

			if verbose && resp.Usage != nil {
				cli.PrintVerbose(true, "response in %s, tokens: %d in, %d out",
					cli.FormatDuration(time.Since(start)),
					resp.Usage.InputTokens, resp.Usage.OutputTokens)
			}
		}
		return scanner.Err()
	},
}

var sessionEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream raw server events as JSON lines",
	Long: `Connect and print every server event frame, one JSON object per
line, until interrupted or the event limit is reached. Useful for
debugging and for piping into jq.

Example:
  rtvoice -c myctx session events --limit 50 | jq .type`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cctx, err := newClient()
		if err != nil {
			return err
		}

		connectConfig, req, err := resolveConnectConfig(cmd, cctx)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := client.ConnectWebSocket(ctx, connectConfig)
		if err != nil {
			return err
		}
		defer s.Close()

		if cfg := sessionConfigFrom(req); cfg != nil {
			if _, err := s.UpdateSession(ctx, cfg); err != nil {
				return err
			}
		}

		out := os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		// Close the session when interrupted so the iterator ends.
		go func() {
			<-ctx.Done()
			s.Close()
		}()

		count := 0
		var total int64
		for ev, err := range s.Events() {
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", ev.Raw)
			count++
			total += int64(len(ev.Raw))
			if limit > 0 && count >= limit {
				break
			}
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "received %d events (%s)\n", count, cli.FormatBytes(total))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sessionTokenCmd, sessionChatCmd, sessionEventsCmd} {
		c.Flags().String("model", "", "Model to use (overrides context default)")
		c.Flags().String("voice", "", "Voice to use (overrides context default)")
		c.Flags().String("instructions", "", "System instructions")
		c.Flags().Bool("no-vad", false, "Disable server-side turn detection")
	}
	sessionEventsCmd.Flags().Int("limit", 0, "Stop after this many events (0 = unlimited)")

	sessionCmd.AddCommand(sessionTokenCmd)
	sessionCmd.AddCommand(sessionChatCmd)
	sessionCmd.AddCommand(sessionEventsCmd)
}
