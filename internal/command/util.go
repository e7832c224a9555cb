package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/storage"
)

type configKey struct{}

// prompt reads a single line from the command's input. The label is only
// written when the input is an interactive terminal.
func prompt(cmd *cobra.Command, label string, mask bool) ([]byte, error) {
	in := cmd.InOrStdin()
	if isTerminal(in) {
		if _, err := io.WriteString(cmd.ErrOrStderr(), label); err != nil {
			return nil, err
		}
	}
	return readLine(in, mask)
}

// confirm asks a yes/no question, defaulting to no.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	resp, err := prompt(cmd, question+" [y|N] ", false)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(string(resp))) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine reads up to the next newline. Input from a terminal is read
// without echo when mask is set. Carriage returns are dropped and backspaces
// remove the previous byte. Reaching the end of input ends the line.
func readLine(in io.Reader, mask bool) ([]byte, error) {
	if file, ok := in.(*os.File); ok && mask && isTerminal(in) {
		return term.ReadPassword(int(file.Fd()))
	}

	var (
		buf  [1]byte
		line []byte
	)
	for {
		n, err := in.Read(buf[:])
		if n > 0 {
			switch buf[0] {
			case '\n':
				return line, nil
			case '\r':
			case '\b':
				if len(line) > 0 {
					line = line[:len(line)-1]
				}
			default:
				line = append(line, buf[0])
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return line, nil
		} else if err != nil {
			return line, err
		}
	}
}

func isTerminal(in io.Reader) bool {
	file, ok := in.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	if ver := info.Main.Version; ver != "" && ver != "(devel)" {
		return ver
	}
	ver := "unknown"
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			ver = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		ver += "-dev"
	}
	return ver
}

// loadConfig returns the configuration resolved by the root command along
// with the default logger and an open store. The caller must close the store.
func loadConfig(ctx context.Context) (*config.Config, *slog.Logger, storage.Store, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, nil, nil, errors.New("configuration resolution failed")
	}
	logger := slog.Default()
	store, err := storage.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, store, nil
}
