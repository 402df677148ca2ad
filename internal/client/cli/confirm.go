package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// promptConfirmer asks on the terminal; anything but y/yes is a no.
type promptConfirmer struct {
	reader *bufio.Reader
	out    io.Writer
}

func (p *promptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	answer, err := getSimpleText(p.reader, prompt+" [y/N]", p.out)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// AlwaysConfirm answers yes without asking; used for --yes.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }
