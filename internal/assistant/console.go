package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// ConsoleListener reads utterances line by line, standing in for a speech
// recognizer.
type ConsoleListener struct {
	scanner *bufio.Scanner
}

func NewConsoleListener(r io.Reader) *ConsoleListener {
	return &ConsoleListener{scanner: bufio.NewScanner(r)}
}

func (l *ConsoleListener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return l.scanner.Text(), nil
}

// ConsoleSpeaker prints responses, standing in for a speech synthesizer.
type ConsoleSpeaker struct {
	w io.Writer
}

func NewConsoleSpeaker(w io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{w: w}
}

func (s *ConsoleSpeaker) Say(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.w, text)
	return err
}
