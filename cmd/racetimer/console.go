package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/command"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/engine"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/timevalue"
)

// console is the timekeeper's interactive prompt.
type console struct {
	dispatcher *command.Dispatcher
	engine     *engine.Engine
	device     link.Device
	out        io.Writer
}

func newConsole(a *app, out io.Writer) *console {
	return &console{
		dispatcher: a.dispatcher,
		engine:     a.engine,
		device:     a.device,
		out:        out,
	}
}

// run reads commands until EOF, "quit" or ctx is done.
func (c *console) run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "racetimer> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.out = rl.Stdout()
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return nil
		}

		if c.exec(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return nil
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "start":
		err = c.dispatcher.Handle(command.Command{Name: command.NameStart})
	case "stop":
		err = c.dispatcher.Handle(command.Command{Name: command.NameStop})
	case "reset":
		err = c.dispatcher.Handle(command.Command{Name: command.NameReset})
	case "finish", "f":
		err = c.slotCommand(command.NameComplete, args, false)
	case "forfeit", "ff":
		err = c.slotCommand(command.NameComplete, args, true)
	case "resume", "r":
		err = c.slotCommand(command.NameResume, args, false)
	case "edit", "e":
		err = c.edit(args)
	case "toggle", "t":
		c.dispatcher.Toggle()
	case "status", "s":
		c.printStatus()
	case "link", "l":
		c.printLink()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		return false
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

func (c *console) slotCommand(name command.Name, args []string, forfeit bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <runner 0-3>", name)
	}
	idx, err := command.ParseIndex(args[0])
	if err != nil {
		return err
	}
	return c.dispatcher.Handle(command.Command{Name: name, Index: &idx, Forfeit: forfeit})
}

func (c *console) edit(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: edit <runner 0-3|master> <[[hh:]mm:]ss>")
	}
	idx, err := command.ParseIndex(args[0])
	if err != nil {
		return err
	}
	if _, err := timevalue.Parse(args[1]); err != nil {
		return err
	}
	return c.dispatcher.Handle(command.Command{Name: command.NameEditTime, Index: &idx, NewTime: args[1]})
}

func (c *console) printStatus() {
	sw := c.engine.Snapshot()
	fmt.Fprintf(c.out, "Clock: %s (%s)\n", sw.Formatted, sw.State)
	for i, r := range sw.Results {
		if r == nil {
			continue
		}
		place := fmt.Sprintf("#%d", r.Place)
		if r.Forfeit {
			place = "forfeit"
		}
		fmt.Fprintf(c.out, "  Runner %d: %s %s\n", i, r.Formatted, place)
	}
}

func (c *console) printLink() {
	st := c.device.Status()
	if !st.Enabled {
		fmt.Fprintln(c.out, "Link: disabled")
		return
	}
	fmt.Fprintf(c.out, "Link: %s\n", st.State)
	if st.Port != "" {
		fmt.Fprintf(c.out, "  Port:       %s\n", st.Port)
		fmt.Fprintf(c.out, "  Session:    %s\n", st.SessionID)
	}
	if !st.LastTraffic.IsZero() {
		fmt.Fprintf(c.out, "  Last seen:  %s\n", st.LastTraffic.Format("15:04:05.000"))
	}
	fmt.Fprintf(c.out, "  Reconnects: %d\n", st.Reconnects)
	if st.LastError != "" {
		fmt.Fprintf(c.out, "  Last error: %s\n", st.LastError)
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  start                  Start the clock
  stop                   Stop the clock
  reset                  Stop, zero and clear all results
  finish <i>             Record a finish for runner i
  forfeit <i>            Record a forfeit for runner i
  resume <i>             Clear runner i's result
  edit <i|master> <time> Set a runner's or the clock's time
  toggle                 Same as pressing the start/finish button
  status                 Show the clock and results
  link                   Show the peripheral link
  quit                   Exit
`)
}
