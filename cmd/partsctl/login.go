package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" || password == "" {
				in := bufio.NewReader(cmd.InOrStdin())
				if username == "" {
					username = prompt(cmd, in, "username: ")
				}
				if password == "" {
					password = prompt(cmd, in, "password: ")
				}
			}
			if username == "" || password == "" {
				return errors.New("username and password are required")
			}

			res, err := a.client().Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "signed in as %s (%s), token expires %s\n",
				res.Username, res.Role, res.ExpiresAt.Local().Format("15:04"))
			fmt.Fprintf(cmd.OutOrStdout(), "export PARTSDESK_TOKEN=%s\n", res.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) string {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
