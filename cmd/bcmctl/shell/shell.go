// Package shell provides the interactive command-line interface for
// bcmctl.
package shell

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/canbcm/bcm-go/pkg/channel"
	"github.com/canbcm/bcm-go/pkg/event"
	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/log"
	"github.com/canbcm/bcm-go/pkg/task"
	"github.com/canbcm/bcm-go/pkg/wire"
)

// Shell drives a poll loop from interactive commands. Commands are
// parsed on the readline goroutine and handed to the loop through the
// operation queue; inbound events are printed as they arrive.
type Shell struct {
	ch    channel.Channel
	queue *task.ChanQueue
	loop  *task.Loop
	rl    *readline.Instance
	fd    bool

	done chan error
}

// New creates a shell over the given channel. fd selects the FD
// message layout for commands that do not override it.
// Pass nil as logger to disable logging.
func New(ch channel.Channel, fd bool, logger log.Logger) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bcm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &Shell{
		ch:    ch,
		queue: task.NewChanQueue(64),
		rl:    rl,
		fd:    fd,
		done:  make(chan error, 1),
	}
	s.loop = task.NewLoop(ch, s.queue, event.SinkFunc(s.printEvent), logger)
	return s, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the poll loop and reads commands until exit or EOF.
// The loop error, if any, is returned after the shell closes.
func (s *Shell) Run() error {
	defer s.rl.Close()

	go func() {
		s.done <- s.loop.Run()
	}()

	s.printHelp()

	for {
		select {
		case err := <-s.done:
			if err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Poll loop stopped: %v\n", err)
			}
			return err
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return s.stop()
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "exit", "quit", "q":
			return s.stop()

		default:
			if err := s.dispatch(cmd, args); err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			}
		}
	}
}

func (s *Shell) stop() error {
	s.loop.Stop()
	return <-s.done
}

// dispatch parses one command into a request and queues it.
func (s *Shell) dispatch(cmd string, args []string) error {
	req, err := s.parse(cmd, args)
	if err != nil {
		return err
	}
	return s.queue.Push(req)
}

// parse builds the request for one command line.
func (s *Shell) parse(cmd string, args []string) (task.Request, error) {
	switch cmd {
	case "send":
		if len(args) < 2 {
			return task.Request{}, fmt.Errorf("usage: send <id> <hex-payload>")
		}
		f, err := s.parseFrame(args[0], args[1])
		if err != nil {
			return task.Request{}, err
		}
		return task.Request{Kind: task.OpSend, Frames: []frame.Frame{f}, FD: s.fd}, nil

	case "cyclic":
		if len(args) < 3 {
			return task.Request{}, fmt.Errorf("usage: cyclic <id> <hex-payload> <interval> [count] [final-interval]")
		}
		f, err := s.parseFrame(args[0], args[1])
		if err != nil {
			return task.Request{}, err
		}
		p, err := parseSchedule(args[2:])
		if err != nil {
			return task.Request{}, err
		}
		return task.Request{
			Kind:   task.OpSetupCyclic,
			Frames: []frame.Frame{f},
			Params: []wire.CyclicParams{p},
			FD:     s.fd,
		}, nil

	case "sequence":
		if len(args) < 3 {
			return task.Request{}, fmt.Errorf("usage: sequence <id> <interval> <id:hex>...")
		}
		id, err := parseID(args[0])
		if err != nil {
			return task.Request{}, err
		}
		ival, err := time.ParseDuration(args[1])
		if err != nil {
			return task.Request{}, err
		}
		frames := make([]frame.Frame, 0, len(args)-2)
		for _, spec := range args[2:] {
			idPart, hexPart, ok := strings.Cut(spec, ":")
			if !ok {
				return task.Request{}, fmt.Errorf("frame %q: want <id>:<hex-payload>", spec)
			}
			f, err := s.parseFrame(idPart, hexPart)
			if err != nil {
				return task.Request{}, err
			}
			frames = append(frames, f)
		}
		return task.Request{
			Kind:   task.OpSetupSequence,
			ID:     id,
			Frames: frames,
			Params: []wire.CyclicParams{{Ival2: wire.TimevalFromDuration(ival)}},
			FD:     s.fd,
		}, nil

	case "delete", "delete-tx":
		id, err := parseSoleID(args)
		if err != nil {
			return task.Request{}, err
		}
		return task.Request{Kind: task.OpDeleteTx, ID: id, FD: s.fd}, nil

	case "delete-rx", "unfilter":
		id, err := parseSoleID(args)
		if err != nil {
			return task.Request{}, err
		}
		return task.Request{Kind: task.OpDeleteRx, ID: id, FD: s.fd}, nil

	case "filter":
		if len(args) < 1 {
			return task.Request{}, fmt.Errorf("usage: filter <id> [hex-mask] [timeout]")
		}
		id, err := parseID(args[0])
		if err != nil {
			return task.Request{}, err
		}
		req := task.Request{Kind: task.OpFilterID, ID: id, FD: s.fd}

		rest := args[1:]
		if len(rest) > 0 && !isDuration(rest[0]) {
			mask, err := s.parseFrame(args[0], rest[0])
			if err != nil {
				return task.Request{}, err
			}
			req.Kind = task.OpFilterMask
			req.Frames = []frame.Frame{mask}
			rest = rest[1:]
		}
		if len(rest) > 0 {
			timeout, err := time.ParseDuration(rest[0])
			if err != nil {
				return task.Request{}, err
			}
			req.Params = []wire.CyclicParams{{Ival1: wire.TimevalFromDuration(timeout)}}
		}
		return req, nil

	default:
		return task.Request{}, fmt.Errorf("unknown command %q, try help", cmd)
	}
}

// parseFrame builds a frame from an identifier and a hex payload.
// "-" stands for an empty payload.
func (s *Shell) parseFrame(idArg, hexArg string) (frame.Frame, error) {
	id, err := parseID(idArg)
	if err != nil {
		return frame.Frame{}, err
	}

	var data []byte
	if hexArg != "-" {
		data, err = hex.DecodeString(strings.ReplaceAll(hexArg, ".", ""))
		if err != nil {
			return frame.Frame{}, fmt.Errorf("payload %q: %w", hexArg, err)
		}
	}

	flavor := frame.FlavorClassic
	if s.fd {
		flavor = frame.FlavorFD
	}
	return frame.New(id, flavor, data)
}

func parseID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("identifier %q: %w", arg, err)
	}
	return uint32(id), nil
}

func parseSoleID(args []string) (uint32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("want exactly one identifier")
	}
	return parseID(args[0])
}

// parseSchedule reads [interval, count, final-interval] with count and
// final-interval optional. Without a count the interval repeats
// indefinitely.
func parseSchedule(args []string) (wire.CyclicParams, error) {
	ival, err := time.ParseDuration(args[0])
	if err != nil {
		return wire.CyclicParams{}, err
	}

	if len(args) == 1 {
		return wire.CyclicParams{Ival2: wire.TimevalFromDuration(ival)}, nil
	}

	count, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return wire.CyclicParams{}, fmt.Errorf("count %q: %w", args[1], err)
	}
	p := wire.CyclicParams{
		Count: uint32(count),
		Ival1: wire.TimevalFromDuration(ival),
	}

	if len(args) > 2 {
		final, err := time.ParseDuration(args[2])
		if err != nil {
			return wire.CyclicParams{}, err
		}
		p.Ival2 = wire.TimevalFromDuration(final)
	}
	return p, nil
}

func isDuration(arg string) bool {
	_, err := time.ParseDuration(arg)
	return err == nil
}

func (s *Shell) printEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindTimeout:
		fmt.Fprintf(s.rl.Stdout(), "TIMEOUT id=0x%03X\n", ev.ID)
	default:
		fmt.Fprintf(s.rl.Stdout(), "CHANGED id=0x%03X len=%d data=% X\n",
			ev.ID, ev.Frame.Len(), ev.Frame.Data)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
BCM Commands:
  Transmission:
    send <id> <hex>                          - Transmit one frame once
    cyclic <id> <hex> <ival> [count] [final] - Install a cyclic task
    sequence <id> <ival> <id:hex>...         - Install an atomic frame sequence
    delete <id>                              - Remove a cyclic task

  Reception:
    filter <id> [hex-mask] [timeout]         - Install a receive filter
    unfilter <id>                            - Remove a receive filter

  General:
    help  - Show this help
    exit  - Quit

Identifiers accept decimal or 0x-prefixed hex; payloads are hex strings
("-" for empty); intervals are durations like 100ms or 1s.`)
}
