package disambiguation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"ai-queryrefine-be/pkg/resolver"

	"github.com/fatih/color"
)

// TerminalPort asks on a line-oriented terminal. Answer with a number, the value itself,
// or 0 / "none" when a none option is offered.
type TerminalPort struct {
	in    *bufio.Reader
	out   io.Writer
	start sync.Once
	lines chan string
	err   chan error
}

var _ resolver.Disambiguator = (*TerminalPort)(nil)

func NewTerminalPort(in io.Reader, out io.Writer) *TerminalPort {
	return &TerminalPort{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan string),
		err:   make(chan error, 1),
	}
}

// readLines owns the reader so a cancelled Ask never leaves two readers behind
func (p *TerminalPort) readLines() {
	for {
		line, err := p.in.ReadString('\n')
		if line != "" {
			p.lines <- strings.TrimSpace(line)
		}
		if err != nil {
			p.err <- err
			return
		}
	}
}

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	optionColor = color.New(color.FgYellow)
	hintColor   = color.New(color.Faint)
)

func (p *TerminalPort) Ask(ctx context.Context, req resolver.DisambiguationRequest) (resolver.Choice, error) {
	promptColor.Fprintln(p.out, req.Prompt)
	for i, c := range req.Candidates {
		optionColor.Fprintf(p.out, "  %d) %s\n", i+1, c)
	}
	if req.AllowNone {
		optionColor.Fprintln(p.out, "  0) None of these")
	}
	hintColor.Fprint(p.out, "> ")

	p.start.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return resolver.Choice{}, ctx.Err()
	case err := <-p.err:
		// keep the error for later prompts
		p.err <- err
		if errors.Is(err, io.EOF) {
			return resolver.Choice{Kind: resolver.ChoiceTimeout}, nil
		}
		return resolver.Choice{}, fmt.Errorf("read answer: %w", err)
	case line := <-p.lines:
		return parseAnswer(line, req), nil
	}
}

func parseAnswer(line string, req resolver.DisambiguationRequest) resolver.Choice {
	if req.AllowNone && (line == "0" || strings.EqualFold(line, "none")) {
		return resolver.Choice{Kind: resolver.ChoiceNone}
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(req.Candidates) {
		return resolver.Choice{Kind: resolver.ChoiceSelected, Value: req.Candidates[n-1]}
	}
	return resolver.Choice{Kind: resolver.ChoiceSelected, Value: line}
}
