package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path for code blocks (default "auto")
style: "auto"
# word-wrap the transcript at width
width: 80
# disable colors
plain: false

speech:
  # avatar: vrm, live2d or pngtuber
  avatar: "vrm"
  # synthesis engine: mock, http or realtime
  engine: "mock"
  # output sample rate in Hz
  sample_rate: 24000
  # volume level (0.0 to 1.0)
  volume: 1.0

  # streamed audio is played in buffers of this many bytes
  buffer_threshold: 100000
  # quiet period before a drained queue resets the avatar
  queue_check_delay: "1500ms"
  # sentence cut-offs for short and long clauses
  short_max: 19
  long_min: 20
  # utterances synthesized ahead of playback
  lookahead: 3

  cache:
    enabled: true
    # dir: "~/.cache/speakstream/audio"
    memory_mb: 64
    disk_mb: 512

  http:
    url: "http://127.0.0.1:50021/synthesize"
    # api_key: "your-api-key-here"
    voice: "default"
    speed: 1.0
    # requests per second and burst
    rate: 5
    burst: 3
    timeout: "30s"

  realtime:
    url: "wss://api.openai.com/v1/realtime"
    # api_key: "your-api-key-here"
    model: "gpt-4o-realtime-preview"
    voice: "alloy"

  # mock engine configuration (for testing)
  mock:
    generation_delay: "100ms"
    words_per_minute: 150
    failure_rate: 0.0

  pngtuber:
    fallback_timeout: "30s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the speakstream config file",
	Long:    paragraph(fmt.Sprintf("\n%s the speakstream config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("speakstream config\nspeakstream config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("speakstream", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
