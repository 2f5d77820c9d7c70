package command

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/engine"
)

// Engine is the part of the clock engine commands drive.
type Engine interface {
	Start(force bool)
	Stop()
	Reset()
	CompleteRunners(indices []int, forfeit bool) error
	ResumeRunners(indices []int) error
	EditTime(index int, newTime string) error
	Toggle() error
}

// Dispatcher applies commands to the engine. For coop runs a completion or
// resume of any slot is applied to every assigned slot.
type Dispatcher struct {
	engine Engine
	runs   engine.RunSource
	logger zerolog.Logger
}

// NewDispatcher returns a Dispatcher. logger may be nil.
func NewDispatcher(e Engine, runs engine.RunSource, logger *zerolog.Logger) *Dispatcher {
	d := &Dispatcher{engine: e, runs: runs}
	if logger != nil {
		d.logger = *logger
	} else {
		d.logger = log.With().Str("component", "command").Logger()
	}
	return d
}

// Handle validates and applies cmd.
func (d *Dispatcher) Handle(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		d.logger.Warn().Str("command", string(cmd.Name)).Err(err).Msg("rejected command")
		return err
	}
	d.logger.Debug().Str("command", string(cmd.Name)).Msg("command")

	switch cmd.Name {
	case NameStart:
		d.engine.Start(false)
	case NameStop:
		d.engine.Stop()
	case NameReset:
		d.engine.Reset()
	case NameComplete:
		return d.Complete(cmd.Index.Slot, cmd.Forfeit)
	case NameResume:
		return d.Resume(cmd.Index.Slot)
	case NameEditTime:
		return d.engine.EditTime(cmd.Index.Engine(), cmd.NewTime)
	}
	return nil
}

// Complete finishes a runner, or every runner of a coop run.
func (d *Dispatcher) Complete(index int, forfeit bool) error {
	return d.engine.CompleteRunners(d.targets(index), forfeit)
}

// Resume un-finishes a runner, or every runner of a coop run.
func (d *Dispatcher) Resume(index int) error {
	return d.engine.ResumeRunners(d.targets(index))
}

// Toggle is the start/finish button: while running it finishes every
// assigned runner, otherwise it resumes them all and starts the clock.
func (d *Dispatcher) Toggle() {
	if err := d.engine.Toggle(); err != nil {
		d.logger.Error().Err(err).Msg("toggle failed")
	}
}

func (d *Dispatcher) targets(index int) []int {
	if d.runs.ActiveRun().Coop {
		if all := d.assigned(); len(all) > 0 {
			return all
		}
	}
	return []int{index}
}

func (d *Dispatcher) assigned() []int {
	var out []int
	for i, a := range d.runs.ActiveRun().Assigned() {
		if a {
			out = append(out, i)
		}
	}
	return out
}
