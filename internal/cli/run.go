package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/presentation/tui"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// RunOptions configures an interactive run in the terminal.
type RunOptions struct {
	ScenarioKey string
	RunID       string
	// Slots seed a fresh run.
	Slots map[string]any
	// Fresh discards a stored snapshot of RunID before starting.
	Fresh bool
	// Watch restarts the run on the same snapshot when the scenario changes.
	Watch bool
	// JSON reads one action document per line and writes one state document
	// per settled transition, for driving the engine from scripts.
	JSON bool
}

// Execute runs opts.ScenarioKey against in and out until the run finishes,
// the input ends or ctx is cancelled.
func Execute(ctx context.Context, eng *hamsfam.Engine, opts RunOptions, in io.Reader, out io.Writer, printer *tui.Printer, logger *slog.Logger) error {
	if printer == nil {
		printer = tui.NewPrinter(out, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &session{eng: eng, opts: opts, out: out, printer: printer, logger: logger}
	return s.loop(ctx, in)
}

type session struct {
	eng     *hamsfam.Engine
	opts    RunOptions
	out     io.Writer
	printer *tui.Printer
	logger  *slog.Logger

	run  *hamsfam.Run
	form *formFill
}

// formFill tracks which element of a form node is being asked for.
type formFill struct {
	nodeID string
	next   int
}

func (s *session) start(ctx context.Context) error {
	var runOpts []hamsfam.RunOption
	if len(s.opts.Slots) > 0 {
		runOpts = append(runOpts, hamsfam.WithSlots(s.opts.Slots))
	}
	run, err := s.eng.Start(ctx, s.opts.ScenarioKey, s.opts.RunID, runOpts...)
	if err != nil {
		return err
	}
	s.run = run
	s.opts.RunID = run.RunID()
	s.form = nil
	return nil
}

func (s *session) loop(ctx context.Context, in io.Reader) error {
	if s.opts.Fresh && s.opts.RunID != "" {
		if err := s.eng.Delete(ctx, s.opts.RunID); err != nil {
			return err
		}
	}
	if err := s.start(ctx); err != nil {
		return err
	}
	s.logger.Info("run active", "run_id", s.opts.RunID, "scenario", s.opts.ScenarioKey)

	var changes <-chan string
	if s.opts.Watch {
		ch, err := s.eng.Watch(ctx)
		switch {
		case errors.Is(err, hamsfam.ErrNotWatchable):
			s.printer.Notice("Scenario source cannot be watched; reload disabled.")
		case err != nil:
			return err
		default:
			changes = ch
		}
	}

	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	for {
		if err := s.run.Wait(ctx); err != nil {
			return s.interrupted(ctx, err)
		}
		st := s.run.State()
		if s.opts.JSON {
			if err := json.NewEncoder(s.out).Encode(st); err != nil {
				return err
			}
		} else {
			s.printer.Print(s.run.Transcript())
		}
		if st.Finished {
			if !s.opts.JSON {
				s.printer.Notice("Finished at '%s' node.", st.CurrentNodeID)
			}
			return nil
		}
		node, ok := s.run.Scenario().Node(st.CurrentNodeID)
		if !ok {
			return fmt.Errorf("%w: current node %q is not in the scenario", domain.ErrUnexpectedAction, st.CurrentNodeID)
		}
		if !s.opts.JSON {
			s.prompt(node)
		}

		select {
		case <-ctx.Done():
			return s.interrupted(ctx, ctx.Err())

		case key, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if key != s.opts.ScenarioKey {
				continue
			}
			s.logger.Info("scenario changed, reloading", "scenario", key)
			if err := s.eng.Close(s.opts.RunID); err != nil {
				return err
			}
			if err := s.start(ctx); err != nil {
				return err
			}
			s.printer.Notice("Reloaded '%s'.", key)

		case line, ok := <-lines:
			if !ok {
				if !s.opts.JSON {
					s.printer.Notice("Input closed at '%s' node.", st.CurrentNodeID)
				}
				return nil
			}
			quit, err := s.handle(ctx, node, line)
			if err != nil {
				if ctx.Err() != nil {
					return s.interrupted(ctx, err)
				}
				s.report(err)
			}
			if quit {
				return nil
			}
		}
	}
}

// handle applies one input line. It reports whether the session should end.
func (s *session) handle(ctx context.Context, node *domain.Node, line string) (bool, error) {
	line, err := SanitizeInput(line)
	if err != nil {
		return false, err
	}
	if s.opts.JSON {
		var a domain.Action
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return false, fmt.Errorf("invalid action document: %w", err)
		}
		return false, s.run.Dispatch(ctx, a)
	}

	switch strings.TrimSpace(line) {
	case ":q", ":quit":
		return true, nil
	case ":reset":
		s.form = nil
		s.printer.Forget()
		return false, s.run.Reset(ctx)
	case ":slots":
		b, err := json.MarshalIndent(s.run.State().SlotValues, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, string(b))
		return false, nil
	case ":help":
		s.printer.Notice("Commands: :reset, :slots, :quit")
		return false, nil
	}

	if d, ok := node.Data.(domain.FormData); ok {
		return false, s.fillForm(ctx, node, d, line)
	}
	a, err := actionFor(node, line)
	if err != nil {
		return false, err
	}
	return false, s.run.Dispatch(ctx, a)
}

// fillForm stages one element value per line and submits after the last.
func (s *session) fillForm(ctx context.Context, node *domain.Node, d domain.FormData, line string) error {
	f := s.formFor(node)
	if f.next < len(d.Elements) {
		el := d.Elements[f.next]
		value, err := elementValue(line, s.run.FormOptions(el))
		if err != nil {
			return err
		}
		if value != nil {
			err := s.run.Dispatch(ctx, domain.Action{Type: domain.ActionSetFormValue, Field: el.Name, Value: value})
			if err != nil {
				return err
			}
		}
		f.next++
	}
	if f.next < len(d.Elements) {
		return nil
	}
	s.form = nil
	return s.run.Dispatch(ctx, domain.Submit(nil))
}

func (s *session) formFor(node *domain.Node) *formFill {
	if s.form == nil || s.form.nodeID != node.ID {
		s.form = &formFill{nodeID: node.ID}
	}
	return s.form
}

func (s *session) prompt(node *domain.Node) {
	switch d := node.Data.(type) {
	case domain.BranchData:
		s.printer.Notice("%s", listReplies(d.Replies))
	case domain.SlotFillingData:
		if len(d.Replies) > 0 {
			s.printer.Notice("%s, or type an answer", listReplies(d.Replies))
		} else {
			s.printer.Notice("Type an answer")
		}
	case domain.FormData:
		f := s.formFor(node)
		if f.next >= len(d.Elements) {
			s.printer.Notice("[enter] to submit")
			return
		}
		el := d.Elements[f.next]
		label := el.Label
		if label == "" {
			label = el.Name
		}
		if opts := s.run.FormOptions(el); len(opts) > 0 {
			s.printer.Notice("%s: %s", label, listOptions(opts))
			return
		}
		s.printer.Notice("%s:", label)
	default:
		s.printer.Notice("[enter] to continue")
	}
}

func (s *session) report(err error) {
	switch {
	case errors.Is(err, domain.ErrRunBusy):
		s.printer.Notice("Still working, try again.")
	default:
		s.printer.Notice("%v", err)
	}
}

func (s *session) interrupted(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if !s.opts.JSON && s.run != nil {
		s.printer.Notice("Interrupted at '%s' node.", s.run.State().CurrentNodeID)
	}
	return nil
}

// actionFor maps a line to the action expected by node.
func actionFor(node *domain.Node, line string) (domain.Action, error) {
	text := strings.TrimSpace(line)
	switch d := node.Data.(type) {
	case domain.BranchData:
		if r, ok := pickReply(d.Replies, text); ok {
			return domain.Choose(r.Display, r.Value), nil
		}
		return domain.Action{}, fmt.Errorf("choose one of: %s", listReplies(d.Replies))
	case domain.SlotFillingData:
		if r, ok := pickReply(d.Replies, text); ok {
			return domain.Choose(r.Display, r.Value), nil
		}
		if text == "" {
			return domain.Action{}, errors.New("an answer is required")
		}
		return domain.Choose(text, text), nil
	}
	return domain.Continue(), nil
}

// pickReply accepts a 1-based index, a display text or a value.
func pickReply(replies []domain.Reply, text string) (domain.Reply, bool) {
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(replies) {
		return replies[n-1], true
	}
	for _, r := range replies {
		if strings.EqualFold(r.Display, text) || (text != "" && r.Handle() == text) {
			return r, true
		}
	}
	return domain.Reply{}, false
}

// elementValue resolves a form line. An empty line leaves the field unset.
func elementValue(line string, options []any) (any, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil, nil
	}
	if len(options) == 0 {
		return text, nil
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], nil
	}
	for _, o := range options {
		if fmt.Sprint(o) == text {
			return o, nil
		}
	}
	return nil, fmt.Errorf("choose one of: %s", listOptions(options))
}

func listReplies(replies []domain.Reply) string {
	parts := make([]string, len(replies))
	for i, r := range replies {
		parts[i] = fmt.Sprintf("%d) %s", i+1, r.Display)
	}
	return strings.Join(parts, "  ")
}

func listOptions(options []any) string {
	parts := make([]string, len(options))
	for i, o := range options {
		parts[i] = fmt.Sprintf("%d) %v", i+1, o)
	}
	return strings.Join(parts, "  ")
}

// readLines feeds the lines of in to the returned channel until EOF or done.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
