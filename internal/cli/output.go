package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/park285/Cheese-Ladder-bot/internal/adapter/ladderpresenter"
	"github.com/park285/Cheese-Ladder-bot/internal/msgcat"
)

// Output writes either the chat-style text rendering or the raw result as JSON.
type Output struct {
	w      io.Writer
	format string
	f      *ladderpresenter.Formatter
}

type cliPrefix struct{}

func (cliPrefix) Prefix() string { return "ladderctl " }

func NewOutput(w io.Writer, format string, cat *msgcat.Catalog) *Output {
	return &Output{w: w, format: format, f: ladderpresenter.NewFormatter(cat, cliPrefix{})}
}

func (o *Output) JSON() bool { return o.format == "json" }

// Print writes data as indented JSON, or the text produced by render.
func (o *Output) Print(data any, render func(f *ladderpresenter.Formatter) string) error {
	if o.JSON() {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	_, err := fmt.Fprintln(o.w, render(o.f))
	return err
}

// Fail turns a ladder error into the same wording the bot uses.
func (o *Output) Fail(err error, names ladderpresenter.Names) error {
	return &commandError{msg: o.f.Error(err, names), cause: err}
}

type commandError struct {
	msg   string
	cause error
}

func (e *commandError) Error() string { return e.msg }

func (e *commandError) Unwrap() error { return e.cause }
