package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loctrack/agent/internal/dispatcher"
	"github.com/loctrack/agent/internal/facade"
)

func onChange(c dispatcher.Change) {
	fmt.Printf("[change] %s %s guid=%s remote_id=%d\n", c.Kind, c.ModelType, c.GUID, c.RemoteID)
}

func onError(msg string) {
	fmt.Printf("[error] %s\n", msg)
}

func onUpdate(version string) {
	fmt.Printf("[update available] %s\n", version)
}

// runREPL reads commands until the user types exit/quit or EOF, per the
// teacher's runREPL contract: a status-bearing prompt, a scanner-driven
// command loop, unknown commands reported back rather than failing the
// loop.
func runREPL(ctx context.Context, app *facade.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("trackagent> %s > ", status(app))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printHelp()
		case "login":
			doLogin(ctx, app, args)
		case "logout":
			if err := app.Logout(ctx); err != nil {
				fmt.Println("logout:", app.ErrorMessage(err))
			}
		case "start":
			doStart(ctx, app, args)
		case "stop":
			doStop(ctx, app)
		case "continue":
			doContinue(ctx, app, args)
		case "list":
			doList(app)
		case "sync":
			if err := app.Sync(ctx); err != nil {
				fmt.Println("sync:", app.ErrorMessage(err))
			}
		case "exit", "quit":
			fmt.Println("bye")
			return
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

func status(app *facade.Context) string {
	u := app.CurrentUser()
	if u.APIToken == "" {
		return "logged out"
	}
	return u.Email
}

func printHelp() {
	fmt.Println(`commands:
  login <email> <password>
  logout
  start <description> [duration]
  stop
  continue <guid>
  list
  sync
  exit`)
}

func doLogin(ctx context.Context, app *facade.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: login <email> <password>")
		return
	}
	if err := app.Login(ctx, args[0], args[1]); err != nil {
		fmt.Println("login:", app.ErrorMessage(err))
	}
}

func doStart(ctx context.Context, app *facade.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: start <description> [duration]")
		return
	}
	description := args[0]
	dur := ""
	if len(args) > 1 {
		dur = args[1]
	}
	entry, err := app.Start(ctx, description, dur, 0, 0)
	if err != nil {
		fmt.Println("start:", app.ErrorMessage(err))
		return
	}
	fmt.Println("started", entry.GUID)
}

func doStop(ctx context.Context, app *facade.Context) {
	stopped, err := app.Stop(ctx)
	if err != nil {
		fmt.Println("stop:", app.ErrorMessage(err))
		return
	}
	for _, e := range stopped {
		fmt.Println("stopped", e.GUID)
	}
}

func doContinue(ctx context.Context, app *facade.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: continue <guid>")
		return
	}
	entry, err := app.Continue(ctx, args[0])
	if err != nil {
		fmt.Println("continue:", app.ErrorMessage(err))
		return
	}
	fmt.Println("continued", entry.GUID)
}

func doList(app *facade.Context) {
	for _, item := range app.TimeEntryViewItems() {
		marker := " "
		if item.Running {
			marker = "*"
		}
		fmt.Printf("%s %-8s %-36s %s\n", marker, strconv.FormatInt(item.WorkspaceID, 10), item.GUID, item.Description)
	}
}
