package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"crypto-assistant/internal/assistant"
	"crypto-assistant/internal/speech"
	"crypto-assistant/internal/viewmodel"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Interactive session: type questions, or :speak to use voice",
	Long: `Starts an interactive session. Each line is asked as a question.

Commands:
  :speak   start a voice capture (needs speech.endpoint or SPEECH_WS_URL)
  :stop    cancel the current voice capture
  :quit    leave`,
	RunE: runListen,
}

// syncWriter serializes output from the input loop and voice asks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, text)
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	out := &syncWriter{w: cmd.OutOrStdout()}

	var rec speech.Recognizer
	if cfg.Speech.Enabled {
		ws := speech.NewWSRecognizer(speech.WSConfig{
			Endpoint:         cfg.Speech.Endpoint,
			Lang:             cfg.Speech.Lang,
			HandshakeTimeout: time.Duration(cfg.Speech.HandshakeTimeoutMs) * time.Millisecond,
			StopGrace:        time.Duration(cfg.Speech.StopGraceMs) * time.Millisecond,
		}, logger.Named("speech"))
		defer ws.Close()
		rec = ws
	}

	client := assistant.NewClient(ctx, newBackend(cfg.Backend.BaseURL), rec,
		[]assistant.RouterOption{
			assistant.WithLogger(logger),
			assistant.WithNarrator(newNarrator()),
			assistant.WithOnUpdate(func(s assistant.Snapshot) { printSnapshot(out, s) }),
		},
		assistant.WithVoiceLogger(logger.Named("voice")),
		assistant.WithOnTranscript(func(text string) { out.print("> " + text + "\n") }),
	)
	defer client.Close()

	if client.Voice.Available() {
		out.print("Type a question, :speak for voice, :quit to leave.\n")
	} else {
		out.print("Type a question, :quit to leave.\n")
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case ":quit", ":q":
			return nil
		case ":speak":
			if !client.Voice.Available() {
				out.print("voice input unavailable, type your question\n")
			} else if client.Voice.Start() {
				out.print("listening...\n")
			}
		case ":stop":
			client.Voice.Stop()
		default:
			// failures reach the user through the snapshot hook
			_, _ = client.Router.Ask(ctx, line)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

func printSnapshot(out *syncWriter, s assistant.Snapshot) {
	switch s.State {
	case assistant.StateSending:
		out.print("asking: " + s.Query + "\n")
	case assistant.StateFailed:
		out.print("error: " + s.Err + "\n")
	case assistant.StateSucceeded:
		if s.View != nil && !s.View.Empty() {
			out.print(renderMarkdown(viewmodel.Markdown(*s.View)))
		}
	}
}
