package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/dashboard"
	"github.com/trezcool/masomo-dashboard/core/listing"
	"github.com/trezcool/masomo-dashboard/core/resource"
	"github.com/trezcool/masomo-dashboard/services/restclient"
)

const tokenEnvVar = "MASOMO_TOKEN"

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errNoToken = errors.New("no token: pass -token or set " + tokenEnvVar)
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer
	token  string // default token, from the environment
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME - log in to the backend and print the token")
	fmt.Fprintln(cli.out, "  list -resource NAME [-token TOKEN] [-search TERM] [-sort KEY] [-desc] [-page N] - print a page of a resource")
	fmt.Fprintln(cli.out, "  resources - list the dashboard resources")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginUname := loginCmd.String("username", "", "The admin's username or email. The password will be prompted next.")

	listCmd := flag.NewFlagSet("list", flag.ContinueOnError)
	listResource := listCmd.String("resource", "", "The resource to list, e.g. users.")
	listToken := listCmd.String("token", "", "The backend token. Defaults to $"+tokenEnvVar+".")
	listSearch := listCmd.String("search", "", "Only keep the records matching this term.")
	listSort := listCmd.String("sort", "", "The field to sort by.")
	listDesc := listCmd.Bool("desc", false, "Sort in descending order.")
	listPage := listCmd.Int("page", 1, "The page to print.")

	for _, cmd := range []*flag.FlagSet{loginCmd, listCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginUname, string(pwd))

	case "list":
		if err := listCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *listResource == "" {
			listCmd.Usage()
			return errHelp
		}
		token := *listToken
		if token == "" {
			token = cli.token
		}
		if token == "" {
			return errNoToken
		}
		dir := listing.Ascending
		if *listDesc {
			dir = listing.Descending
		}
		return cli.list(listOptions{
			resource: *listResource,
			token:    token,
			search:   *listSearch,
			sortKey:  *listSort,
			sortDir:  dir,
			page:     *listPage,
		})

	case "resources":
		return cli.resources()

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) client(tokens restclient.TokenProvider) (*restclient.Client, error) {
	return restclient.New(restclient.Config{
		BaseURL:    cli.conf.Backend.BaseURL,
		Timeout:    cli.conf.Backend.Timeout,
		RetryCount: cli.conf.Backend.RetryCount,
		Tokens:     tokens,
	})
}

func (cli *commandLine) login(username, password string) error {
	client, err := cli.client(nil)
	if err != nil {
		return err
	}
	token, err := client.Login(context.Background(), core.CleanString(username, true), password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

type listOptions struct {
	resource string
	token    string
	search   string
	sortKey  string
	sortDir  listing.Direction
	page     int
}

func (cli *commandLine) list(opts listOptions) error {
	res, err := resource.Get(opts.resource)
	if err != nil {
		return err
	}
	client, err := cli.client(restclient.StaticToken(opts.token))
	if err != nil {
		return err
	}

	scr := dashboard.NewScreen(res, client, cli.logger, cli.conf.Dashboard.PageSize)
	if err = scr.Refresh(context.Background()); err != nil {
		return err
	}
	scr.Search(opts.search)
	if opts.sortKey != "" {
		scr.SortBy(opts.sortKey, opts.sortDir)
	}
	view := scr.Page(opts.page)

	return renderView(cli.out, res, view)
}

func (cli *commandLine) resources() error {
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTITLE\tSEARCHABLE")
	for _, res := range resource.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Name, res.Title, strings.Join(res.SearchableFields, ", "))
	}
	return w.Flush()
}

// renderView prints the page items under the resource columns, then the pagination footer.
func renderView(out io.Writer, res resource.Resource, view listing.View) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = strings.ToUpper(col)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	row := make([]string, len(res.Columns))
	for _, rec := range view.PageItems {
		for i, col := range res.Columns {
			row[i] = rec.Field(col)
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if view.FilteredCount == 0 {
		_, err := fmt.Fprintln(out, "No records found.")
		return err
	}
	first := (view.CurrentPage-1)*view.PageSize + 1
	last := first + len(view.PageItems) - 1
	_, err := fmt.Fprintf(out, "Showing %d-%d of %d (%d total) | page %d of %d\n",
		first, last, view.FilteredCount, view.TotalCount, view.CurrentPage, view.TotalPages)
	return err
}
