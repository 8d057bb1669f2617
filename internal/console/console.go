// Package console is the interactive command prompt.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/engine"
)

var (
	// ErrQuit is returned by Exec and Run when the user asks to quit.
	ErrQuit = errors.New("quit")
	// ErrUsage marks a command given the wrong arguments.
	ErrUsage = errors.New("usage")
)

// Control is the part of engine.Controller the prompt drives.
type Control interface {
	Start() error
	Stop() error
	SetBPM(bpm int) error
	Tap() (int, bool, error)
	SetTimeSignature(numerator, denominator int) error
	SetSubdivision(factor float64)
	SetSoundKind(kind audio.SoundKind) error
	SetVolume(gain float64)
	SetAccentFirstBeat(on bool)
	State() engine.State
	Stats() audio.Stats
}

type command struct {
	args string
	help string
	run  func(c Control, args []string) (string, error)
}

var commands = map[string]command{
	"start": {"", "start playing from beat 1", func(c Control, _ []string) (string, error) {
		return "playing", c.Start()
	}},
	"stop": {"", "stop playing", func(c Control, _ []string) (string, error) {
		return "stopped", c.Stop()
	}},
	"bpm": {"N", "set tempo (40-400)", func(c Control, args []string) (string, error) {
		n, err := intArg(args)
		if err != nil {
			return "", err
		}
		if err := c.SetBPM(n); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d BPM", c.State().BPM), nil
	}},
	"tap": {"", "tap the tempo", func(c Control, _ []string) (string, error) {
		bpm, ok, err := c.Tap()
		if err != nil {
			return "", err
		}
		if !ok {
			return "tap again", nil
		}
		return fmt.Sprintf("%d BPM", bpm), nil
	}},
	"sig": {"N/D", "set time signature", func(c Control, args []string) (string, error) {
		if len(args) != 1 {
			return "", ErrUsage
		}
		num, den, ok := strings.Cut(args[0], "/")
		if !ok {
			return "", ErrUsage
		}
		n, err1 := strconv.Atoi(num)
		d, err2 := strconv.Atoi(den)
		if err1 != nil || err2 != nil {
			return "", ErrUsage
		}
		if err := c.SetTimeSignature(n, d); err != nil {
			return "", err
		}
		s := c.State()
		return fmt.Sprintf("%d/%d", s.BeatsPerBar, s.BeatUnit), nil
	}},
	"sub": {"F", "clicks per beat (0.25-8)", func(c Control, args []string) (string, error) {
		f, err := floatArg(args)
		if err != nil {
			return "", err
		}
		c.SetSubdivision(f)
		return fmt.Sprintf("subdivision %g", c.State().Subdivision), nil
	}},
	"sound": {"NAME", "select click sound", func(c Control, args []string) (string, error) {
		if len(args) != 1 {
			return "", ErrUsage
		}
		kind, ok := audio.ParseSoundKind(args[0])
		if !ok {
			return "", errors.Wrap(engine.ErrUnknownSound, args[0])
		}
		if err := c.SetSoundKind(kind); err != nil {
			return "", err
		}
		return kind.String(), nil
	}},
	"vol": {"X", "set volume (0-1)", func(c Control, args []string) (string, error) {
		f, err := floatArg(args)
		if err != nil {
			return "", err
		}
		c.SetVolume(f)
		return fmt.Sprintf("volume %.2f", c.State().Volume), nil
	}},
	"accent": {"on|off", "accent the first beat of the bar", func(c Control, args []string) (string, error) {
		if len(args) != 1 {
			return "", ErrUsage
		}
		var on bool
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			on = true
		case "off", "false", "0":
		default:
			return "", ErrUsage
		}
		c.SetAccentFirstBeat(on)
		if on {
			return "accent on", nil
		}
		return "accent off", nil
	}},
	"status": {"", "show current settings", func(c Control, _ []string) (string, error) {
		return formatState(c.State()), nil
	}},
	"stats": {"", "show render counters", func(c Control, _ []string) (string, error) {
		st := c.Stats()
		return fmt.Sprintf("callbacks %d, frames %d, skips %d (%d beats)",
			st.Callbacks, st.Frames, st.Skips, st.SkippedBeats), nil
	}},
	"quit": {"", "exit", func(Control, []string) (string, error) {
		return "", ErrQuit
	}},
}

// Exec runs one command line against c and returns its reply.
func Exec(c Control, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	if name == "help" || name == "?" {
		return Help(), nil
	}
	if name == "exit" {
		name = "quit"
	}
	cmd, ok := commands[name]
	if !ok {
		return "", errors.Errorf("unknown command %q, try help", fields[0])
	}
	out, err := cmd.run(c, fields[1:])
	if errors.Cause(err) == ErrUsage {
		return "", errors.Errorf("usage: %s %s", name, cmd.args)
	}
	return out, err
}

// Help lists the commands.
func Help() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(&b, "  %-16s %s\n", strings.TrimSpace(name+" "+cmd.args), cmd.help)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatState(s engine.State) string {
	play := "stopped"
	if s.IsPlaying {
		play = fmt.Sprintf("playing, beat %d", s.CurrentBeat)
	}
	accent := "off"
	if s.AccentFirstBeat {
		accent = "on"
	}
	return fmt.Sprintf("%d BPM %d/%d x%g, %s, volume %.2f, accent %s, %d Hz, %s",
		s.BPM, s.BeatsPerBar, s.BeatUnit, s.Subdivision, s.Sound, s.Volume, accent, s.SampleRate, play)
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, ErrUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, ErrUsage
	}
	return n, nil
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, ErrUsage
	}
	f, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, ErrUsage
	}
	return f, nil
}

// Run reads commands from a readline prompt until quit, EOF or ctx ends.
// Only an explicit quit returns ErrQuit. Without a terminal on stdin Run
// returns nil straight away.
func Run(ctx context.Context, c Control, prompt string) error {
	return run(ctx, c, prompt, os.Stdin)
}

func run(ctx context.Context, c Control, prompt string, in *os.File) error {
	if !readline.IsTerminal(int(in.Fd())) {
		return nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		Stdin:           in,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return errors.Wrap(err, "open prompt")
	}
	defer func() { _ = rl.Close() }() // Best effort.

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()
	return loop(rl, rl.Stdout(), c)
}

type lineReader interface {
	Readline() (string, error)
}

func loop(r lineReader, w io.Writer, c Control) error {
	for {
		line, err := r.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		out, err := Exec(c, line)
		if err == ErrQuit {
			return err
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
}

func completer() *readline.PrefixCompleter {
	sounds := make([]readline.PrefixCompleterInterface, 0, len(audio.SoundKinds()))
	for _, k := range audio.SoundKinds() {
		sounds = append(sounds, readline.PcItem(k.String()))
	}
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("sound", sounds...),
		readline.PcItem("accent", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("help"),
	}
	for name := range commands {
		if name != "sound" && name != "accent" {
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}
