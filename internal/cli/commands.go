package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aussiebroadwan/classroom/pkg/apiclient"
)

type command struct {
	usage   string
	minArgs int
	signIn  bool
	run     func(ctx context.Context, app *App, args []string) error
}

var commands = map[string]command{
	"whoami": {usage: "whoami", signIn: true, run: runWhoami},
	"get":    {usage: "get PATH", minArgs: 1, signIn: true, run: runGet},
	"post":   {usage: "post PATH JSON", minArgs: 2, signIn: true, run: runSend(http.MethodPost)},
	"put":    {usage: "put PATH JSON", minArgs: 2, signIn: true, run: runSend(http.MethodPut)},
	"delete": {usage: "delete PATH", minArgs: 1, signIn: true, run: runDelete},
	"upload": {usage: "upload PATH FILE [key=value ...]", minArgs: 2, signIn: true, run: runUpload},
	"signup": {usage: "signup", run: runSignup},
	"reset":  {usage: "reset EMAIL", minArgs: 1, run: runReset},
}

func runWhoami(_ context.Context, app *App, _ []string) error {
	return app.print(app.oracle.CurrentIdentity())
}

func runGet(ctx context.Context, app *App, args []string) error {
	var out json.RawMessage
	if err := app.client.Get(ctx, args[0], &out); err != nil {
		return err
	}
	return app.printRaw(out)
}

func runDelete(ctx context.Context, app *App, args []string) error {
	var out json.RawMessage
	if err := app.client.Del(ctx, args[0], &out); err != nil {
		return err
	}
	return app.printRaw(out)
}

func runSend(method string) func(context.Context, *App, []string) error {
	return func(ctx context.Context, app *App, args []string) error {
		body := json.RawMessage(args[1])
		if !json.Valid(body) {
			return fmt.Errorf("request body is not valid JSON: %s", args[1])
		}

		var out json.RawMessage
		var err error
		if method == http.MethodPut {
			err = app.client.Put(ctx, args[0], body, &out)
		} else {
			err = app.client.Post(ctx, args[0], body, &out)
		}
		if err != nil {
			return err
		}
		return app.printRaw(out)
	}
}

func runUpload(ctx context.Context, app *App, args []string) error {
	fields := make(map[string]string, len(args)-2)
	for _, kv := range args[2:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("field %q is not key=value", kv)
		}
		fields[k] = v
	}

	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	var out json.RawMessage
	if err := app.client.UploadFile(ctx, args[0], apiclient.File{Name: f.Name(), Content: f}, fields, &out); err != nil {
		return err
	}
	return app.printRaw(out)
}

func runSignup(ctx context.Context, app *App, _ []string) error {
	if !app.hasProvider {
		return errNoProvider
	}
	if app.cfg.Email == "" || app.cfg.Password == "" {
		return errors.New("signup needs CLASSROOM_EMAIL and CLASSROOM_PASSWORD")
	}

	id, err := app.oracle.CreateAccount(ctx, app.cfg.Email, app.cfg.Password)
	if err != nil {
		return err
	}
	defer func() { _ = app.oracle.SignOut(ctx) }()

	return app.print(id)
}

func runReset(ctx context.Context, app *App, args []string) error {
	if !app.hasProvider {
		return errNoProvider
	}
	if err := app.oracle.SendPasswordReset(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "password reset email sent to %s\n", args[0])
	return nil
}

// print writes v as indented JSON.
func (app *App) print(v any) error {
	enc := json.NewEncoder(app.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// printRaw indents a response body. Empty bodies print nothing.
func (app *App) printRaw(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(app.stdout)
	return err
}
