package main

import (
	"fmt"
	"os"

	"dev.acmcsuf.com/statuslight/credentials"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file     string
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "statuslight-user",
		Short: "Create or update a users file entry with a hashed password",
		Long: `statuslight-user adds a user to the users file read by statuslightd, or
replaces the password of an existing one. The password is prompted for when
--password is omitted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := promptPassword()
				if err != nil {
					return err
				}
				password = p
			}

			store := &credentials.Store{Path: file}

			recovered, err := store.Set(username, password)
			if recovered {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s exists but is not valid JSON, overwriting\n",
					color.New(color.FgYellow).Sprint("warning:"), file)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s user %q updated in %s\n",
				color.New(color.FgGreen).Sprint("✓"), username, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "users.json", "path to the users file")
	cmd.Flags().StringVar(&username, "username", "", "username to create or update")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password, prompted for when omitted")
	cmd.MarkFlagRequired("username")

	return cmd
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", credentials.ErrEmptyPassword
	}

	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(b), nil
}
