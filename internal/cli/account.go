package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/notify"
	"github.com/virail/studio/internal/session"
)

var errNotSignedIn = errors.New("not signed in: run `studio login` first")

type credentialFlags struct {
	email         string
	name          string
	passwordStdin bool
}

func (f *credentialFlags) bind(cmd *cobra.Command, withName bool) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "display name")
	}
}

// credentials collects what the flags did not provide. Passwords are never
// taken from flags; they are read without echo on a terminal, or from stdin.
func (f *credentialFlags) credentials(cmd *cobra.Command, errOut io.Writer) (model.Credentials, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	creds := model.Credentials{Email: strings.TrimSpace(f.email), Name: f.name}

	if creds.Email == "" {
		_, _ = fmt.Fprint(errOut, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return creds, fmt.Errorf("read email: %w", err)
		}
		creds.Email = strings.TrimSpace(line)
	}

	if file, ok := cmd.InOrStdin().(*os.File); ok && !f.passwordStdin && term.IsTerminal(int(file.Fd())) {
		_, _ = fmt.Fprint(errOut, "Password: ")
		pw, err := term.ReadPassword(int(file.Fd()))
		_, _ = fmt.Fprintln(errOut)
		if err != nil {
			return creds, fmt.Errorf("read password: %w", err)
		}
		creds.Password = string(pw)
		return creds, nil
	}

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return creds, fmt.Errorf("read password: %w", err)
	}
	creds.Password = strings.TrimRight(line, "\r\n")
	return creds, nil
}

func newLoginCmd(app *App) *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Virail Studio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := flags.credentials(cmd, app.errOut)
			if err != nil {
				return err
			}
			user, err := app.session.Login(cmd.Context(), app.client, creds)
			if err != nil {
				return app.fail(err, "")
			}
			return app.welcome(cmd.Context(), user)
		},
	}
	flags.bind(cmd, false)
	return cmd
}

func newRegisterCmd(app *App) *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a Virail Studio account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := flags.credentials(cmd, app.errOut)
			if err != nil {
				return err
			}
			user, err := app.session.Register(cmd.Context(), app.client, creds)
			if err != nil {
				return app.fail(err, "")
			}
			return app.welcome(cmd.Context(), user)
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func (a *App) welcome(ctx context.Context, user *model.User) error {
	if a.format != formatText {
		return a.write(user, nil)
	}
	return a.notifier.Notify(ctx, notify.Toast{
		Title:       "Signed in",
		Description: "Welcome, " + displayName(user) + ".",
		Variant:     notify.Default,
	})
}

func displayName(u *model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.session.Logout(cmd.Context(), app.client); err != nil {
				return app.fail(err, "")
			}
			_, err := fmt.Fprintln(app.out, "Signed out.")
			return err
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			st := app.session.State()
			if st.Status != session.Authenticated {
				return errNotSignedIn
			}
			return app.write(st.User, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s (%s)\n", displayName(st.User), st.User.ID)
				return err
			})
		},
	}
}
