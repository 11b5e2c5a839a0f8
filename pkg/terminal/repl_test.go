package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/kelly-poet/pkg/completion"
	"github.com/abdhe/kelly-poet/pkg/persona"
)

type fakeAsker struct {
	replies map[string]string
	err     error
	asked   []string
}

func (f *fakeAsker) Ask(_ context.Context, sessionID, text string) (string, error) {
	f.asked = append(f.asked, sessionID+":"+text)
	if f.err != nil {
		return "", f.err
	}
	return f.replies[text], nil
}

func runREPL(t *testing.T, input string, asker Asker) string {
	t.Helper()
	var out bytes.Buffer
	console := NewConsole(strings.NewReader(input), &out)
	t.Cleanup(func() { _ = console.Close() })
	repl := NewREPL(asker, "s1", console, console, zerolog.Nop())
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPL_PrintsBannerAndResponse(t *testing.T) {
	asker := &fakeAsker{replies: map[string]string{
		"Can AI feel?": "In circuits cold, no heart resides...",
	}}

	out := runREPL(t, "Can AI feel?\n", asker)

	assert.Contains(t, out, persona.Title)
	assert.Contains(t, out, persona.Tagline)
	assert.Contains(t, out, "Kelly is an AI scientist who speaks in verse.")
	assert.Contains(t, out, "Kelly is composing a poetic critique...")
	assert.Contains(t, out, "Kelly's Poetic Response:\nIn circuits cold, no heart resides...")
	assert.Equal(t, []string{"s1:Can AI feel?"}, asker.asked)
	assert.Less(t, strings.Index(out, "composing"), strings.Index(out, "Poetic Response"))
}

func TestREPL_EmptyInputWarnsWithoutAsking(t *testing.T) {
	asker := &fakeAsker{}

	out := runREPL(t, "   \n", asker)

	assert.Contains(t, out, "Please enter a question or statement first.")
	assert.NotContains(t, out, "composing")
	assert.Empty(t, asker.asked)
}

func TestREPL_ErrorIsRendered(t *testing.T) {
	asker := &fakeAsker{err: &completion.Error{Kind: completion.KindMissingCredential, Provider: "openai"}}

	out := runREPL(t, "hello\n", asker)

	assert.Contains(t, out, "Error: completion: ")
	assert.NotContains(t, out, "Poetic Response")
}

func TestREPL_QuitStopsBeforeRemainingInput(t *testing.T) {
	asker := &fakeAsker{replies: map[string]string{"first": "one"}}

	out := runREPL(t, "first\n/quit\nsecond\n", asker)

	assert.Equal(t, []string{"s1:first"}, asker.asked)
	assert.Contains(t, out, "Poetic Response:\none")
}

// blockingReader never returns, like an idle terminal.
type blockingReader struct{ ch chan struct{} }

func (b blockingReader) Read([]byte) (int, error) {
	<-b.ch
	return 0, errors.New("closed")
}

func TestREPL_ContextCancelEndsLoop(t *testing.T) {
	r := blockingReader{ch: make(chan struct{})}
	defer close(r.ch)

	var out bytes.Buffer
	console := NewConsole(r, &out)
	repl := NewREPL(&fakeAsker{}, "s1", console, console, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := repl.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsole_CloseReleasesReaderWithPendingInput(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(strings.NewReader("first\n/quit\nleft over\nand more\n"), &out)
	repl := NewREPL(&fakeAsker{replies: map[string]string{"first": "one"}}, "s1", console, console, zerolog.Nop())

	require.NoError(t, repl.Run(context.Background()))
	require.NoError(t, console.Close())
	require.NoError(t, console.Close())

	select {
	case <-console.stopped:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still blocked after Close")
	}

	text, ok := console.PromptUser(context.Background())
	assert.False(t, ok)
	assert.Empty(t, text)
}
