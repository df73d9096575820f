package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/speakstream/internal/chatlog"
	"github.com/dgnsrekt/speakstream/speech"
)

var (
	chunk   int
	delay   time.Duration
	follow  bool
	idle    time.Duration
	copyOut bool
	noCache bool
	mute    bool

	speakCmd = &cobra.Command{
		Use:   "speak [SOURCE]",
		Short: "Speak a reply read from a file or stdin",
		Long: paragraph(fmt.Sprintf(
			"\nSpeak a reply read from %s or stdin. The text is replayed as a stream of fragments, "+
				"so it is heard the way a live AI reply would be.",
			keyword("a file"),
		)),
		Example: paragraph(`speakstream speak reply.md
cat reply.md | speakstream speak --chunk 8 --delay 30ms
speakstream speak --follow /tmp/reply.txt`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			return runSpeak(cmd, arg)
		},
	}
)

func runSpeak(cmd *cobra.Command, arg string) error {
	if arg == "" {
		pipe, err := stdinIsPipe()
		if err != nil {
			return err
		}
		if !pipe {
			return cmd.Help()
		}
	}
	if follow && (arg == "" || arg == "-") {
		return errors.New("--follow needs a file")
	}

	cfg, err := speech.LoadConfig()
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, pipelineOptions{
		noCache: noCache,
		mute:    mute,
		rigOut:  os.Stderr,
		plain:   plain,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("Shutdown was not clean", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fragments <-chan string
	if follow {
		fragments, err = followFragments(ctx, arg, idle)
		if err != nil {
			return err
		}
	} else {
		src, err := openSource(arg)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck
		fragments = readerFragments(ctx, src, chunk, delay)
	}

	// Ctrl-C silences the avatar at once instead of letting queued audio
	// finish.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.controller.Stop()
		case <-done:
		}
	}()

	err = p.controller.Speak(ctx, fragments)
	if err == nil {
		err = p.controller.Wait(ctx)
	}
	if err != nil && !errors.Is(err, speech.ErrStopped) && !errors.Is(err, context.Canceled) {
		return err
	}

	return printTranscript(cmd, p.transcript)
}

func printTranscript(cmd *cobra.Command, t *chatlog.Transcript) error {
	if t.Len() == 0 {
		return nil
	}
	r := chatlog.NewRenderer(cmd.OutOrStdout(), int(width), plain) //nolint:gosec
	r.GlamourStyle = style
	out, err := r.Render(t)
	if err != nil {
		return fmt.Errorf("unable to render transcript: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	if copyOut {
		if clipboard.Unsupported {
			log.Warn("Clipboard is not supported on this system")
			return nil
		}
		if err := t.Copy(); err != nil {
			return fmt.Errorf("unable to copy transcript: %w", err)
		}
		log.Debug("Transcript copied", "messages", t.Len())
	}
	return nil
}

func init() {
	speakCmd.Flags().IntVar(&chunk, "chunk", 0, "runes per fragment (0 replays line by line)")
	speakCmd.Flags().DurationVar(&delay, "delay", 0, "pause between fragments")
	speakCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep speaking what is appended to the file")
	speakCmd.Flags().DurationVar(&idle, "idle", 5*time.Second, "stop following after this long without writes")
	speakCmd.Flags().BoolVarP(&copyOut, "copy", "c", false, "copy the transcript to the clipboard")
	speakCmd.Flags().String("engine", "", "synthesis engine (mock, http, realtime)")
	speakCmd.Flags().String("avatar", "", "avatar kind (vrm, live2d, pngtuber)")
	speakCmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use the synthesis cache")
	speakCmd.Flags().BoolVar(&mute, "mute", false, "do not open the sound device")

	_ = viper.BindPFlag("speech.engine", speakCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("speech.avatar", speakCmd.Flags().Lookup("avatar"))
}
