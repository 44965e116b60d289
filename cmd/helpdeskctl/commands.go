package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/board"
	"github.com/spec-kit/helpdesk/internal/client"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/session"
	"github.com/spec-kit/helpdesk/internal/storage"
	"github.com/spec-kit/helpdesk/internal/thread"
)

func (a *app) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.Usage = func() {
		fmt.Fprintf(a.errOut, "Usage: helpdeskctl %s\n%s", usages[name], fs.FlagUsages())
	}
	return fs
}

func wantArgs(fs *pflag.FlagSet, n int) error {
	if fs.NArg() < n {
		fs.Usage()
		return fmt.Errorf("%s: expected %d argument(s)", fs.Name(), n)
	}
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "account password")
	register := fs.Bool("register", false, "create the account first")
	email := fs.String("email", "", "email for --register")
	staff := fs.Bool("staff", false, "register as staff")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		fs.Usage()
		return errors.New("login: --username and --password are required")
	}

	var res *dto.AuthResponse
	var err error
	if *register {
		res, err = a.client.Register(ctx, dto.RegisterRequest{
			Username: *username,
			Email:    *email,
			Password: *password,
			IsStaff:  *staff,
		})
	} else {
		res, err = a.client.Login(ctx, *username, *password)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\nexport HELPDESK_TOKEN=%s\n", res.User.Username, roleOf(res.User.IsStaff), res.Token)
	return nil
}

func (a *app) whoami(ctx context.Context, _ []string) error {
	me, err := a.client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\n", me.ID, me.Username, me.Role)
	return nil
}

func (a *app) staff(ctx context.Context, _ []string) error {
	users, err := a.client.ListStaff(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\n", u.ID, u.Username)
	}
	return w.Flush()
}

func (a *app) newBoard() *board.Board {
	return board.New(a.client,
		board.WithLogger(a.logger),
		board.WithErrorReporter(func(err error) {
			fmt.Fprintf(a.errOut, "board: %v\n", err)
		}))
}

func (a *app) board(ctx context.Context, _ []string) error {
	b := a.newBoard()
	if err := b.Refresh(ctx); err != nil {
		return err
	}
	return a.printBoard(ctx, b.Columns())
}

func (a *app) move(ctx context.Context, args []string) error {
	fs := a.flags("move")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := wantArgs(fs, 2); err != nil {
		return err
	}
	b := a.newBoard()
	if err := b.Refresh(ctx); err != nil {
		return err
	}
	moved, err := b.HandleDragEnd(ctx, board.DragEnd{TicketID: fs.Arg(0), Over: fs.Arg(1)})
	if !moved {
		fmt.Fprintln(a.out, "nothing to move")
		return nil
	}
	if printErr := a.printBoard(ctx, b.Columns()); printErr != nil && err == nil {
		err = printErr
	}
	return err
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := a.flags("create")
	title := fs.String("title", "", "short summary")
	description := fs.String("description", "", "what is wrong")
	kind := fs.String("type", "", "ticket type, e.g. hardware")
	priority := fs.String("priority", string(domain.TicketPriorityMedium), "low, medium, high or urgent")
	status := fs.String("status", string(domain.TicketStatusCreated), "initial status")
	assign := fs.String("assign", "", "staff user id (staff only)")
	images := fs.StringArray("image", nil, "image file to attach, up to 3")
	if err := fs.Parse(args); err != nil {
		return err
	}

	me, err := a.client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fields := map[string]string{
		"title":       *title,
		"description": *description,
		"type":        *kind,
		"priority":    *priority,
		"status":      *status,
		"user":        me.ID,
	}
	if *assign != "" {
		fields["assignedTo"] = *assign
	}
	t, err := a.client.CreateTicket(ctx, fields, storage.FromPaths(*images))
	if err != nil {
		return err
	}
	return a.printTicket(ctx, t)
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := a.flags("edit")
	fs.String("title", "", "new title")
	fs.String("description", "", "new description")
	fs.String("type", "", "new type")
	fs.String("priority", "", "new priority")
	fs.String("status", "", "new status (staff, or owner while created)")
	assign := fs.String("assign", "", "assign to a staff user id (staff only)")
	unassign := fs.Bool("unassign", false, "clear the assignee (staff only)")
	removed := fs.IntSlice("remove-image", nil, "index of an image to remove")
	images := fs.StringArray("image", nil, "image file to attach")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := wantArgs(fs, 1); err != nil {
		return err
	}

	s, err := a.openSession(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Edit(); err != nil {
		if errors.Is(err, session.ErrNotEditable) {
			return fmt.Errorf("ticket %s can no longer be edited by you", fs.Arg(0))
		}
		return err
	}

	update := client.TicketUpdate{
		Fields:        map[string]string{},
		RemovedImages: *removed,
		Images:        storage.FromPaths(*images),
	}
	for _, name := range []string{"title", "description", "type", "priority", "status"} {
		if fs.Changed(name) {
			update.Fields[name], _ = fs.GetString(name)
		}
	}
	switch {
	case *unassign:
		update.Fields["assignedTo"] = ""
	case fs.Changed("assign"):
		update.Fields["assignedTo"] = *assign
	}

	t, err := a.client.UpdateTicket(ctx, fs.Arg(0), update)
	if err != nil {
		_ = s.CancelEdit(ctx)
		return err
	}
	if err := s.Saved(ctx, *t); err != nil {
		return err
	}
	return a.printTicket(ctx, t)
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := a.flags("delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := wantArgs(fs, 1); err != nil {
		return err
	}
	if err := a.client.DeleteTicket(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", fs.Arg(0))
	return nil
}

func (a *app) view(ctx context.Context, args []string) error {
	fs := a.flags("view")
	watch := fs.Bool("watch", false, "keep polling for new comments until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := wantArgs(fs, 1); err != nil {
		return err
	}

	printer := &commentPrinter{out: a.out, seen: map[string]bool{}}
	s, err := a.openSession(ctx, fs.Arg(0), thread.WithOnChange(printer.print))
	if err != nil {
		return err
	}
	defer s.Close()

	t, _ := s.Selected()
	if err := a.printTicket(ctx, &t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "editable:    %v\n\n", s.CanEditSelected())
	printer.start()

	if !*watch {
		// The poll started by the session may not have run yet.
		return s.Thread().Refresh(ctx)
	}
	<-ctx.Done()
	return nil
}

func (a *app) comment(ctx context.Context, args []string) error {
	fs := a.flags("comment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := wantArgs(fs, 2); err != nil {
		return err
	}
	th := thread.New(a.client, fs.Arg(0), thread.WithLogger(a.logger))
	th.SetInput(strings.Join(fs.Args()[1:], " "))
	c, err := th.Send(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\n", c.ID, c.Author, c.Text)
	return nil
}

// openSession signs in as the token's user and opens the view dialog on
// ticketID, which starts polling its comments.
func (a *app) openSession(ctx context.Context, ticketID string, opts ...thread.Option) (*session.Session, error) {
	me, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	t, err := a.client.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	opts = append([]thread.Option{thread.WithInterval(a.poll), thread.WithLogger(a.logger)}, opts...)
	s := session.New(a.client, opts...)
	s.SignIn(domain.Actor{UserID: me.ID, Username: me.Username, IsStaff: me.IsStaff})
	if err := s.OpenTicket(ctx, *t); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) printBoard(ctx context.Context, cols board.Columns) error {
	var all []domain.Ticket
	for _, status := range domain.TicketStatuses {
		all = append(all, cols[status]...)
	}
	names := board.ResolveNames(ctx, a.client, all)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, status := range domain.TicketStatuses {
		fmt.Fprintf(w, "%s (%d)\n", strings.ToUpper(string(status)), len(cols[status]))
		for _, t := range cols[status] {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", t.ID, t.Priority, t.Title, board.AssigneeName(names, t.AssignedTo))
		}
	}
	return w.Flush()
}

func (a *app) printTicket(ctx context.Context, t *domain.Ticket) error {
	names := board.ResolveNames(ctx, a.client, []domain.Ticket{*t})
	assignee := board.AssigneeName(names, t.AssignedTo)
	if assignee == "" {
		assignee = "-"
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(w, "id:\t%s\n", t.ID)
	fmt.Fprintf(w, "title:\t%s\n", t.Title)
	fmt.Fprintf(w, "status:\t%s\n", t.Status)
	fmt.Fprintf(w, "priority:\t%s\n", t.Priority)
	fmt.Fprintf(w, "type:\t%s\n", t.Type)
	fmt.Fprintf(w, "assignee:\t%s\n", assignee)
	for i, img := range t.Images {
		fmt.Fprintf(w, "image %d:\t%s\n", i, img)
	}
	fmt.Fprintf(w, "\n%s\n", t.Description)
	return w.Flush()
}

// commentPrinter writes each comment once, however often the list is
// refreshed. Lists that arrive before start are held back so they do not
// interleave with the ticket header.
type commentPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
	held []domain.Comment
	live bool
}

func (p *commentPrinter) print(comments []domain.Comment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.live {
		p.held = comments
		return
	}
	p.write(comments)
}

func (p *commentPrinter) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = true
	p.write(p.held)
	p.held = nil
}

func (p *commentPrinter) write(comments []domain.Comment) {
	for _, c := range comments {
		if p.seen[c.ID] {
			continue
		}
		p.seen[c.ID] = true
		fmt.Fprintf(p.out, "[%s] %s: %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Author, c.Text)
	}
}

func roleOf(isStaff bool) string {
	if isStaff {
		return domain.RoleStaff
	}
	return domain.RoleCustomer
}
