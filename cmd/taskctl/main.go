// Command taskctl はtaskman APIのコマンドラインクライアント。
//
//	taskctl [-api URL] [-token-file PATH] <command> [flags]
//
// コマンド: signup, login, logout, me, list, create, update, delete
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hitoshi/taskman/internal/client"
)

const defaultAPIURL = "http://localhost:3000"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "taskctl: %v\n", err)
		}
		os.Exit(1)
	}
}

// cli はサブコマンドの実行に必要な状態を保持する。
type cli struct {
	client  *client.Client
	session *client.Session
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("taskctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	apiURL := global.String("api", envOr("TASKMAN_API_URL", defaultAPIURL), "APIのベースURL")
	tokenFile := global.String("token-file", os.Getenv("TASKMAN_TOKEN_FILE"), "トークンの保存先（未指定時はユーザー設定ディレクトリ）")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: taskctl [-api URL] [-token-file PATH] <signup|login|logout|me|list|create|update|delete> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return flag.ErrHelp
	}

	path := *tokenFile
	if path == "" {
		p, err := client.DefaultTokenPath()
		if err != nil {
			return err
		}
		path = p
	}

	c := client.New(*apiURL, client.NewFileTokenStore(path))
	c.OnUnauthorized(func() {
		fmt.Fprintln(stderr, "session expired, please log in again")
	})
	app := &cli{
		client:  c,
		session: client.NewSession(c),
		out:     stdout,
		errOut:  stderr,
		now:     time.Now,
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "signup":
		return app.signup(ctx, rest)
	case "login":
		return app.login(ctx, rest)
	case "logout":
		return app.logout(ctx)
	case "me":
		return app.me(ctx)
	case "list":
		return app.list(ctx, rest)
	case "create":
		return app.create(ctx, rest)
	case "update":
		return app.update(ctx, rest)
	case "delete":
		return app.deleteTask(ctx, rest)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *cli) signup(ctx context.Context, args []string) error {
	fs := a.flags("signup")
	username := fs.String("username", "", "ユーザー名（3〜20文字）")
	email := fs.String("email", "", "メールアドレス")
	password := fs.String("password", "", "パスワード（6文字以上）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := a.session.Signup(ctx, client.SignupRequest{Username: *username, Email: *email, Password: *password})
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "User created successfully (id: %s). Run 'taskctl login' to sign in.\n", id)
	return nil
}

func (a *cli) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "メールアドレス")
	password := fs.String("password", "", "パスワード")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.session.Login(ctx, *email, *password)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Logged in as %s <%s>\n", u.Username, u.Email)
	return nil
}

func (a *cli) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *cli) me(ctx context.Context) error {
	u, err := a.client.Me(ctx)
	if err != nil {
		return describe(err)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", u.ID)
	fmt.Fprintf(tw, "USERNAME\t%s\n", u.Username)
	fmt.Fprintf(tw, "EMAIL\t%s\n", u.Email)
	fmt.Fprintf(tw, "CREATED\t%s\n", u.CreatedAt.Local().Format(time.DateTime))
	return tw.Flush()
}

func (a *cli) list(ctx context.Context, args []string) error {
	fs := a.flags("list")
	page := fs.Int("page", 1, "ページ番号")
	limit := fs.Int("limit", client.PageSize, "1ページの件数")
	order := fs.String("order", string(client.SortDesc), "作成日時の並び順（asc|desc）")
	all := fs.Bool("all", false, "すべてのページを取得する")
	status := fs.String("status", "", "状態で絞り込む（todo|in-progress|done）")
	search := fs.String("search", "", "タイトルと説明で絞り込む")
	overdue := fs.Bool("overdue", false, "期限切れのタスクのみ表示する")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		tasks      []client.Task
		pagination *client.Pagination
	)
	if *all {
		state := client.NewTaskState(a.client)
		if err := state.SetSortOrder(ctx, client.SortOrder(*order)); err != nil {
			return describe(err)
		}
		for state.HasNext() {
			if err := state.LoadMore(ctx); err != nil {
				return describe(err)
			}
		}
		snap := state.Snapshot()
		tasks, pagination = snap.Tasks, snap.Pagination
	} else {
		resp, err := a.client.ListTasks(ctx, *page, *limit, client.SortOrder(*order))
		if err != nil {
			return describe(err)
		}
		tasks, pagination = resp.Data, &resp.Pagination
	}

	filtered := client.ApplyFilter(tasks, client.Filter{Status: *status, Search: *search, OverdueOnly: *overdue}, a.now())
	if err := a.printTasks(filtered); err != nil {
		return err
	}
	if pagination != nil && !*all {
		fmt.Fprintf(a.out, "\npage %d/%d, %d tasks total\n", pagination.Page, pagination.TotalPages, pagination.Total)
	} else {
		fmt.Fprintf(a.out, "\n%d of %d tasks shown\n", len(filtered), len(tasks))
	}
	return nil
}

func (a *cli) printTasks(tasks []client.Task) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDUE\tTITLE")
	now := a.now()
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format(time.DateOnly)
			if client.IsOverdue(t, now) {
				due += " (overdue)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Status, due, t.Title)
	}
	return tw.Flush()
}

func (a *cli) create(ctx context.Context, args []string) error {
	fs := a.flags("create")
	title := fs.String("title", "", "タイトル（必須、100文字以内）")
	description := fs.String("description", "", "説明（500文字以内）")
	status := fs.String("status", "", "状態（todo|in-progress|done）")
	due := fs.String("due", "", "期限（YYYY-MM-DDまたはRFC 3339）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := client.CreateTaskRequest{Title: *title, Status: *status, DueDate: *due}
	if *description != "" {
		req.Description = description
	}
	t, err := a.client.CreateTask(ctx, req)
	if err != nil {
		return describe(err)
	}
	return a.printTasks([]client.Task{*t})
}

func (a *cli) update(ctx context.Context, args []string) error {
	fs := a.flags("update")
	title := fs.String("title", "", "タイトル")
	description := fs.String("description", "", "説明")
	status := fs.String("status", "", "状態（todo|in-progress|done）")
	due := fs.String("due", "", "期限（YYYY-MM-DDまたはRFC 3339）")

	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}

	// 明示的に指定されたフラグのみ送信する
	var req client.UpdateTaskRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			req.Title = title
		case "description":
			req.Description = description
		case "status":
			req.Status = status
		case "due":
			req.DueDate = due
		}
	})

	t, err := a.client.UpdateTask(ctx, id, req)
	if err != nil {
		return describe(err)
	}
	return a.printTasks([]client.Task{*t})
}

func (a *cli) deleteTask(ctx context.Context, args []string) error {
	id, err := parseWithID(a.flags("delete"), args)
	if err != nil {
		return err
	}
	if err := a.client.DeleteTask(ctx, id); err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

// parseWithID はタスクIDの位置引数とフラグを解析する。IDはフラグの前後どちらでもよい。
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return "", fmt.Errorf("%s: task id is required", fs.Name())
	}
	return id, nil
}

// describe はAPIエラーをフィールドごとのメッセージ付きで整形する。
func describe(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err
	}
	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(apiErr.Error())
	for _, field := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", field, apiErr.Fields[field])
	}
	return errors.New(b.String())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
