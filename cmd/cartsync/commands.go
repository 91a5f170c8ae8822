package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"cartsync/internal/bootstrap"
	"cartsync/internal/core"
	"cartsync/pkg/cli"
)

type command func(configPath string, args []string, out io.Writer) error

var commands = map[string]command{
	"serve":  cmdServe,
	"show":   cmdShow,
	"total":  cmdTotal,
	"add":    cmdAdd,
	"remove": cmdRemove,
	"login":  cmdLogin,
	"logout": cmdLogout,
}

var errUsage = errors.New("missing arguments")

// withApp builds the app, bootstraps the store and always drains pending
// cart notifications before returning
func withApp(configPath string, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := bootstrap.NewApp(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app.Store.Bootstrap(ctx)

	runErr := fn(ctx, app)
	if err := app.Close(); err != nil {
		app.Logger.Warn("Shutdown incomplete", "error", err)
	}
	return runErr
}

func cmdServe(configPath string, _ []string, _ io.Writer) error {
	return withApp(configPath, func(ctx context.Context, app *bootstrap.App) error {
		return app.Run(ctx, app.ServeRunners()...)
	})
}

func cmdShow(configPath string, _ []string, out io.Writer) error {
	return withApp(configPath, func(_ context.Context, app *bootstrap.App) error {
		printState(out, app)
		return nil
	})
}

func cmdTotal(configPath string, _ []string, out io.Writer) error {
	return withApp(configPath, func(_ context.Context, app *bootstrap.App) error {
		fmt.Fprintln(out, app.Store.GetTotalCartAmount().StringFixed(2))
		return nil
	})
}

func cmdAdd(configPath string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("add: %w: item id", errUsage)
	}
	if err := validateIDs(args); err != nil {
		return err
	}
	return withApp(configPath, func(ctx context.Context, app *bootstrap.App) error {
		for _, id := range args {
			app.Store.AddToCart(ctx, id)
		}
		printCart(out, app)
		return nil
	})
}

func cmdRemove(configPath string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("remove: %w: item id", errUsage)
	}
	if err := validateIDs(args); err != nil {
		return err
	}
	return withApp(configPath, func(ctx context.Context, app *bootstrap.App) error {
		for _, id := range args {
			app.Store.RemoveFromCart(ctx, id)
		}
		printCart(out, app)
		return nil
	})
}

func cmdLogin(configPath string, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("login: %w: token", errUsage)
	}
	if err := cli.ValidateToken(args[0]); err != nil {
		return err
	}
	return withApp(configPath, func(ctx context.Context, app *bootstrap.App) error {
		if err := app.Store.Login(ctx, core.Token(args[0])); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged in")
		printCart(out, app)
		return nil
	})
}

func cmdLogout(configPath string, _ []string, out io.Writer) error {
	return withApp(configPath, func(ctx context.Context, app *bootstrap.App) error {
		if err := app.Store.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out")
		return nil
	})
}

func validateIDs(ids []string) error {
	for _, id := range ids {
		if err := cli.ValidateItemID(id); err != nil {
			return err
		}
	}
	return nil
}

func printState(out io.Writer, app *bootstrap.App) {
	_, active := app.Store.Token()
	fmt.Fprintf(out, "Order service: %s (session active: %t)\n\n", app.Store.URL(), active)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
	for _, item := range app.Store.FoodList() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Category, item.Price.StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintln(out)

	printCart(out, app)
}

func printCart(out io.Writer, app *bootstrap.App) {
	items := app.Store.CartItems()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%d\n", id, items[id])
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "Total: %s\n", app.Store.GetTotalCartAmount().StringFixed(2))
}
