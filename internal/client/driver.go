package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/validate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNavigateBack signals caller-intent to return to the previous menu.
	ErrNavigateBack = errors.New("navigate back")
	// ErrNavigateExit signals caller-intent to quit the session.
	ErrNavigateExit = errors.New("navigate exit")
)

type menuOption struct {
	label  string
	action protocol.ActionName
	param  string
	prompt string
}

var headlineMenu = []menuOption{
	{label: "Search for keywords", action: protocol.ActionHeadlinesKeyword, param: "q", prompt: "Keyword"},
	{label: "Search by category", action: protocol.ActionHeadlinesCategory, param: "category", prompt: "Category"},
	{label: "Search by country", action: protocol.ActionHeadlinesCountry, param: "country", prompt: "Country code"},
	{label: "List all new headlines", action: protocol.ActionHeadlinesAll},
}

var sourceMenu = []menuOption{
	{label: "Search by category", action: protocol.ActionSourcesCategory, param: "category", prompt: "Category"},
	{label: "Search by country", action: protocol.ActionSourcesCountry, param: "country", prompt: "Country code"},
	{label: "Search by language", action: protocol.ActionSourcesLanguage, param: "language", prompt: "Language"},
	{label: "List all sources", action: protocol.ActionSourcesAll},
}

// Driver runs the interactive menu loop against one server connection.
type Driver struct {
	conn   Requester
	reader *bufio.Reader
	out    io.Writer
	styles Styles
	rules  validate.Rules
	logger zerolog.Logger
}

func NewDriver(conn Requester, in io.Reader, out io.Writer) *Driver {
	return &Driver{
		conn:   conn,
		reader: bufio.NewReader(in),
		out:    out,
		styles: NewStyles(out),
		rules:  validate.DefaultRules(),
		logger: log.Logger.With().Str("component", "client").Logger(),
	}
}

// Run blocks until the user quits or the connection fails. Error responses
// from the server are shown and the loop continues.
func (d *Driver) Run(ctx context.Context) error {
	for {
		d.printMenu("Main Menu", []string{"Search headlines", "List of sources", "Quit"})
		choice, err := d.promptInt("Choose", 1, 3, false, true)
		if err != nil {
			if errors.Is(err, ErrNavigateExit) {
				return d.quit(ctx)
			}
			return err
		}
		switch choice {
		case 1:
			err = d.runSubMenu(ctx, "Headlines Menu", headlineMenu, protocol.ActionHeadlinesDetail)
		case 2:
			err = d.runSubMenu(ctx, "Sources Menu", sourceMenu, protocol.ActionSourcesDetail)
		case 3:
			return d.quit(ctx)
		}
		if err != nil {
			if errors.Is(err, ErrNavigateExit) {
				return d.quit(ctx)
			}
			return err
		}
	}
}

func (d *Driver) runSubMenu(ctx context.Context, title string, options []menuOption, detail protocol.ActionName) error {
	labels := make([]string, 0, len(options)+1)
	for _, opt := range options {
		labels = append(labels, opt.label)
	}
	labels = append(labels, "Back to the main menu")
	for {
		d.printMenu(title, labels)
		choice, err := d.promptInt("Choose", 1, len(labels), true, true)
		if err != nil {
			if errors.Is(err, ErrNavigateBack) {
				return nil
			}
			return err
		}
		if choice == len(labels) {
			return nil
		}
		opt := options[choice-1]
		req := protocol.Request{Action: opt.action, Params: map[string]string{}}
		if opt.param != "" {
			value, err := d.promptLine(d.paramPrompt(opt))
			if err != nil {
				return err
			}
			req.Params[opt.param] = strings.TrimSpace(value)
		}
		resp, err := d.send(ctx, req)
		if err != nil {
			return err
		}
		if resp.OK() && total(resp) > 0 {
			if err := d.detailLoop(ctx, detail, total(resp)); err != nil {
				return err
			}
		}
	}
}

// detailLoop offers index lookups against the list just shown until the user
// enters a blank line.
func (d *Driver) detailLoop(ctx context.Context, action protocol.ActionName, n int) error {
	for {
		raw, err := d.promptLine(fmt.Sprintf("Index for details [1-%d], blank to go back", n))
		if err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		if strings.EqualFold(raw, "exit") || strings.EqualFold(raw, "e") {
			return ErrNavigateExit
		}
		if _, err := d.send(ctx, protocol.Request{Action: action, Params: map[string]string{protocol.ParamIndex: raw}}); err != nil {
			return err
		}
	}
}

func (d *Driver) send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	resp, err := d.conn.Do(ctx, req)
	if err != nil {
		d.logger.Error().Err(err).Str("action", string(req.Action)).Msg("request failed")
		return protocol.Response{}, err
	}
	fmt.Fprint(d.out, d.styles.RenderResponse(resp))
	return resp, nil
}

func (d *Driver) quit(ctx context.Context) error {
	defer d.conn.Close()
	resp, err := d.conn.Do(ctx, protocol.Request{Action: protocol.ActionQuit, Params: map[string]string{}})
	if err != nil {
		return fmt.Errorf("client: quit: %w", err)
	}
	fmt.Fprint(d.out, d.styles.RenderResponse(resp))
	return nil
}

func (d *Driver) paramPrompt(opt menuOption) string {
	var choices string
	switch opt.param {
	case "category":
		choices = d.rules.Categories()
	case "country":
		choices = d.rules.Countries()
	case "language":
		choices = d.rules.Languages()
	}
	if choices == "" {
		return opt.prompt
	}
	return fmt.Sprintf("%s (%s)", opt.prompt, choices)
}

func (d *Driver) printMenu(title string, labels []string) {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, d.styles.Header.Render(title))
	for i, label := range labels {
		fmt.Fprintf(d.out, "  %s %s\n", d.styles.Index.Render(fmt.Sprintf("%d)", i+1)), label)
	}
}

func (d *Driver) promptLine(label string) (string, error) {
	if strings.TrimSpace(label) != "" {
		fmt.Fprintf(d.out, "%s: ", label)
	}
	line, err := d.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", ErrNavigateExit
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (d *Driver) promptInt(label string, min int, max int, allowBack bool, allowExit bool) (int, error) {
	for {
		rangePrompt := fmt.Sprintf("%s [%d-%d", label, min, max)
		if allowBack {
			rangePrompt += "|back|b"
		}
		if allowExit {
			rangePrompt += "|exit|e"
		}
		rangePrompt += "]"
		line, err := d.promptLine(rangePrompt)
		if err != nil {
			return 0, err
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if allowBack && (trimmed == "back" || trimmed == "b") {
			return 0, ErrNavigateBack
		}
		if allowExit && (trimmed == "exit" || trimmed == "e") {
			return 0, ErrNavigateExit
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < min || v > max {
			fmt.Fprintln(d.out, d.styles.Error.Render("Invalid selection."))
			continue
		}
		return v, nil
	}
}
