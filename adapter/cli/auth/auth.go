package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/felixgeelhaar/caravan/adapter/cli"
)

var (
	email     string
	password  string
	firstName string
	lastName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in and keep the session for later commands.

The password is prompted for when --password is not given.

Examples:
  caravan login --email ana@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		if email == "" {
			return errors.New("missing --email")
		}
		pw, err := readPassword(app, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		sess, err := app.Client.Login(cmd.Context(), email, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", sess.User.DisplayName, sess.User.Email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `Create an account and sign in as it.

Examples:
  caravan register --email ana@example.com --first-name Ana --last-name Silva`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		if email == "" || firstName == "" {
			return errors.New("--email and --first-name are required")
		}
		pw, err := readPassword(app, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		sess, err := app.Client.Register(cmd.Context(), email, pw, firstName, lastName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", sess.User.DisplayName)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		if _, ok := app.Session.Principal(); !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		// The local session is gone even when the server call fails.
		if err := app.Client.Logout(cmd.Context()); err != nil {
			app.Logger.Warn("server logout failed", "error", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		me, err := app.Client.Me(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", me.DisplayName)
		fmt.Fprintf(out, "  email: %s\n", me.Email)
		fmt.Fprintf(out, "  id:    %s\n", me.ID)
		return nil
	},
}

// readPassword uses --password, then a hidden terminal prompt, then one
// line of app.In when input is piped.
func readPassword(app *cli.App, out io.Writer) (string, error) {
	if password != "" {
		return password, nil
	}

	fmt.Fprint(out, "Password: ")
	if f, ok := app.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(app.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

// Commands returns the account commands for the root command.
func Commands() []*cobra.Command {
	return []*cobra.Command{loginCmd, registerCmd, logoutCmd, whoamiCmd}
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&email, "email", "e", "", "account email")
		c.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	}
	registerCmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&lastName, "last-name", "", "last name")
}
