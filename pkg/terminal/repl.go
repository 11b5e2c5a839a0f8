// Package terminal is the interactive line-based front-end for Kelly.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdhe/kelly-poet/pkg/chat"
	"github.com/abdhe/kelly-poet/pkg/persona"
)

const (
	quitCommand   = "/quit"
	composingText = "Kelly is composing a poetic critique..."
	responseTitle = "Kelly's Poetic Response:"
	emptyWarning  = "Please enter a question or statement first."
)

// Display renders text to the user.
type Display interface {
	Display(text string)
}

// Prompter reads the next utterance. ok is false once input is exhausted
// or ctx is done.
type Prompter interface {
	PromptUser(ctx context.Context) (text string, ok bool)
}

// Asker answers one utterance within a session. *chat.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, sessionID, text string) (string, error)
}

// Console is a Display and Prompter over a reader/writer pair.
type Console struct {
	out    io.Writer
	prompt string
	lines  chan string

	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewConsole starts reading lines from in. The reader goroutine exits at EOF,
// or after Close once its pending Read returns.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:     out,
		prompt:  "You: ",
		lines:   make(chan string),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	defer close(c.stopped)
	defer close(c.lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			return
		}
	}
}

// Close releases the reader goroutine. It is safe to call more than once.
func (c *Console) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Console) Display(text string) {
	fmt.Fprintln(c.out, text)
}

func (c *Console) PromptUser(ctx context.Context) (string, bool) {
	fmt.Fprint(c.out, c.prompt)
	select {
	case <-ctx.Done():
		return "", false
	case <-c.done:
		return "", false
	case line, ok := <-c.lines:
		return line, ok
	}
}

// REPL drives one chat session until the user quits.
type REPL struct {
	asker     Asker
	sessionID string
	display   Display
	prompter  Prompter
	log       zerolog.Logger
}

// NewREPL builds a loop over an existing session.
func NewREPL(asker Asker, sessionID string, display Display, prompter Prompter, log zerolog.Logger) *REPL {
	return &REPL{
		asker:     asker,
		sessionID: sessionID,
		display:   display,
		prompter:  prompter,
		log:       log.With().Str("component", "terminal").Logger(),
	}
}

// Run prints the banner, then answers utterances until EOF, /quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.display.Display(persona.Title)
	r.display.Display(persona.Tagline)
	r.display.Display(persona.About)
	r.display.Display(fmt.Sprintf("Type %s to exit.", quitCommand))

	for {
		text, ok := r.prompter.PromptUser(ctx)
		if !ok {
			return ctx.Err()
		}
		if strings.TrimSpace(text) == quitCommand {
			return nil
		}
		r.turn(ctx, text)
	}
}

func (r *REPL) turn(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		r.display.Display(emptyWarning)
		return
	}

	r.display.Display(composingText)
	reply, err := r.asker.Ask(ctx, r.sessionID, text)
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		r.display.Display(emptyWarning)
	case err != nil:
		r.log.Debug().Err(err).Msg("turn failed")
		r.display.Display("Error: " + err.Error())
	default:
		r.display.Display(responseTitle + "\n" + reply)
	}
}
