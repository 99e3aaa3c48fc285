// Package console implements the CLI hook named in spec.md §6: triggers
// save_all, unload_all and graceful shutdown, and toggles settings. It
// keeps the teacher's dual-mode REPL shape (an interactive go-prompt
// loop against a TTY, a line-scanner loop against any other reader) and
// its history/prefix conventions, but drops the teacher's full
// command-framework suggestion machinery (cmd.Command, cmd.Param,
// player targets) since this engine has no player-entity concept to
// target — commands here are a short, fixed, hand-dispatched set.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/fallingsand/engine/config"
	"github.com/fallingsand/engine/world"
	"github.com/fallingsand/engine/world/persist"
)

const (
	defaultPromptPrefix = "> "
	maxHistoryEntries   = 128
)

// Handler is the subset of engine behavior the console can trigger.
// A real binary wires this to its World and Settings; tests can wire a
// fake.
type Handler interface {
	SaveAll()
	UnloadAll()
	Shutdown()
	Settings() *config.Settings
}

// Console reads commands from an io.Reader (defaulting to os.Stdin) and
// dispatches them against a Handler.
type Console struct {
	h       Handler
	log     *slog.Logger
	reader  io.Reader
	history []string
}

// New returns a Console bound to h, reading from os.Stdin by default.
func New(h Handler, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{h: h, log: log, reader: os.Stdin}
}

// WithReader sets a custom reader, so the console can be driven by a
// script in tests instead of os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes commands until ctx is cancelled or the reader hits EOF.
func (c *Console) Run(ctx context.Context) {
	if c.reader != os.Stdin {
		c.runScanner(ctx)
		return
	}
	c.runInteractive(ctx)
}

func (c *Console) runScanner(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "error", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) runInteractive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := prompt.Input(defaultPromptPrefix, c.complete,
			prompt.OptionTitle("sandworld console"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefix(defaultPromptPrefix),
			prompt.OptionCompletionOnDown(),
			prompt.OptionMaxSuggestion(12),
		)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) execute(line string) {
	input := strings.TrimSpace(strings.TrimPrefix(line, "/"))
	if input == "" {
		return
	}
	c.history = append(c.history, input)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[len(c.history)-maxHistoryEntries:]
	}

	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	cmdFn, ok := commands[name]
	if !ok {
		c.log.Error("unknown command", "command", name)
		return
	}
	cmdFn(c, args)
}

type commandFunc func(c *Console, args []string)

var commands = map[string]commandFunc{
	"save":   func(c *Console, _ []string) { c.h.SaveAll(); c.log.Info("saved all resident chunks") },
	"unload": func(c *Console, _ []string) { c.h.UnloadAll(); c.log.Info("unloaded all chunks") },
	"stop":   func(c *Console, _ []string) { c.log.Info("shutting down"); c.h.Shutdown() },
	"set":    (*Console).cmdSet,
}

// cmdSet toggles a boolean setting named by args[0] to the value in
// args[1] ("true"/"false"), matching spec.md §6's "CLI ... toggles
// settings".
func (c *Console) cmdSet(args []string) {
	if len(args) != 2 {
		c.log.Error("usage: set <field> <true|false>")
		return
	}
	field, raw := args[0], args[1]
	value := raw == "true" || raw == "1"
	s := c.h.Settings()
	if err := s.SetBool(field, value); err != nil {
		c.log.Error("set failed", "error", err)
		return
	}
	c.log.Info("setting updated", "field", field, "value", value)
}

func (c *Console) complete(doc prompt.Document) []prompt.Suggest {
	word := strings.TrimPrefix(doc.GetWordBeforeCursor(), "/")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	suggestions := make([]prompt.Suggest, 0, len(names))
	for _, name := range names {
		suggestions = append(suggestions, prompt.Suggest{Text: name, Description: fmt.Sprintf("/%s", name)})
	}
	return prompt.FilterHasPrefix(suggestions, word, true)
}

// defaultHandler adapts a world.World plus a shutdown callback into
// Handler, for binaries that don't need a custom implementation.
type defaultHandler struct {
	w         *world.World
	root      string
	settings  *config.Settings
	shutdown  func()
}

// NewDefaultHandler returns a Handler backed directly by a World.
func NewDefaultHandler(w *world.World, root string, settings *config.Settings, shutdown func()) Handler {
	return &defaultHandler{w: w, root: root, settings: settings, shutdown: shutdown}
}

func (d *defaultHandler) SaveAll() {
	d.w.Exec(func(tx *world.Tx) {
		tx.Manager().Range(func(c *world.Chunk) {
			if !c.Ready() {
				return
			}
			if err := persist.Save(d.root, c); err != nil {
				slog.Default().Error("save failed", "pos", c.Pos, "error", err)
			}
		})
	})
}

func (d *defaultHandler) UnloadAll() {
	d.w.Exec(func(tx *world.Tx) {
		var all []world.ChunkPos
		tx.Manager().Range(func(c *world.Chunk) { all = append(all, c.Pos) })
		for _, pos := range all {
			tx.Manager().Remove(pos)
		}
	})
}

func (d *defaultHandler) Shutdown() {
	if d.shutdown != nil {
		d.shutdown()
	}
}

func (d *defaultHandler) Settings() *config.Settings { return d.settings }
