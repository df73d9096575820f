package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
)

// openSource opens a file argument, or stdin for "" and "-".
func openSource(arg string) (io.ReadCloser, error) {
	if arg == "" || arg == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	path, err := homedir.Expand(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	return f, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readerFragments replays r as a stream of fragments. With chunk > 0 every
// fragment holds chunk runes, otherwise one line. delay is slept between
// fragments. The channel closes at EOF or when ctx is done.
func readerFragments(ctx context.Context, r io.Reader, chunk int, delay time.Duration) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		br := bufio.NewReader(r)
		for first := true; ; first = false {
			frag, err := nextFragment(br, chunk)
			if frag != "" {
				if !first && delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return
					}
				}
				select {
				case out <- frag:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn("Reading source failed", "err", err)
				}
				return
			}
		}
	}()
	return out
}

func nextFragment(br *bufio.Reader, chunk int) (string, error) {
	if chunk <= 0 {
		return br.ReadString('\n')
	}
	var b strings.Builder
	for i := 0; i < chunk; i++ {
		r, _, err := br.ReadRune()
		if err != nil {
			return b.String(), err
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// followFragments emits the current content of path and then every append
// to it, until ctx is done or nothing was written for idle.
func followFragments(ctx context.Context, path string, idle time.Duration) (<-chan string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to watch file: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		f.Close()
		watcher.Close()
		return nil, fmt.Errorf("unable to watch file: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer watcher.Close()
		defer f.Close()

		var carry []byte
		buf := make([]byte, 32*1024)
		drain := func() bool {
			for {
				n, err := f.Read(buf)
				if n > 0 {
					var frag []byte
					frag, carry = completeUTF8(append(carry, buf[:n]...))
					if len(frag) > 0 {
						select {
						case out <- string(frag):
						case <-ctx.Done():
							return false
						}
					}
				}
				if err != nil {
					if !errors.Is(err, io.EOF) {
						log.Warn("Reading followed file failed", "path", path, "err", err)
						return false
					}
					return true
				}
			}
		}

		if !drain() {
			return
		}
		timer := time.NewTimer(idle)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				log.Debug("Followed file went idle", "path", path, "idle", idle)
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("File watcher error", "err", err)
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					log.Debug("Followed file went away", "path", path)
					return
				}
				if !ev.Has(fsnotify.Write) {
					continue
				}
				if !drain() {
					return
				}
				timer.Reset(idle)
			}
		}
	}()
	return out, nil
}

// completeUTF8 splits b before a trailing incomplete rune.
func completeUTF8(b []byte) ([]byte, []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i:i], append([]byte(nil), b[i:]...)
	}
	return b, nil
}
