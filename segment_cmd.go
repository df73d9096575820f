package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/speakstream/internal/preprocess"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/segment"
)

var segmentCmd = &cobra.Command{
	Use:   "segment [SOURCE]",
	Short: "Print the units a reply is cut into",
	Long: paragraph(fmt.Sprintf(
		"\nPrint the %s a reply is cut into, without synthesizing anything.",
		keyword("speech and code units"),
	)),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		if arg == "" {
			pipe, err := stdinIsPipe()
			if err != nil {
				return err
			}
			if !pipe {
				return cmd.Help()
			}
		}

		cfg, err := speech.LoadConfig()
		if err != nil {
			return err
		}
		src, err := openSource(arg)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		seg := segment.New(segment.WithCutoffs(cfg.ShortMax, cfg.LongMin))
		var units []speech.Unit
		for frag := range readerFragments(cmd.Context(), src, chunk, 0) {
			units = append(units, seg.Feed(frag)...)
		}
		units = append(units, seg.Finish()...)

		return printUnits(cmd.OutOrStdout(), units)
	},
}

var (
	unitIndexStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	unitKindStyle  = lipgloss.NewStyle().Bold(true)
)

func printUnits(w io.Writer, units []speech.Unit) error {
	for i, u := range units {
		emotion := u.Emotion
		if emotion == "" {
			emotion = "-"
		}
		kind := u.Kind.String()
		if u.Unterminated {
			kind += "!"
		}

		text := u.Text
		if u.Kind == speech.KindSpeech {
			if spoken := preprocess.Message(u.Text); spoken != text {
				text = fmt.Sprintf("%s => %s", text, strconv.Quote(spoken))
			}
		} else {
			text = strings.ReplaceAll(text, "\n", "\n"+strings.Repeat(" ", 24))
		}

		if plain {
			_, err := fmt.Fprintf(w, "%3d %-7s %-11s %s\n", i+1, kind, emotion, text)
			if err != nil {
				return err
			}
			continue
		}
		_, err := fmt.Fprintf(w, "%s %s %s %s\n",
			unitIndexStyle.Render(fmt.Sprintf("%3d", i+1)),
			unitKindStyle.Render(fmt.Sprintf("%-7s", kind)),
			keyword(fmt.Sprintf("%-11s", emotion)),
			text)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	segmentCmd.Flags().IntVar(&chunk, "chunk", 0, "runes per fragment (0 feeds line by line)")
}
