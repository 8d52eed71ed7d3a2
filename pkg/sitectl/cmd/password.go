package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/equitraccion/site/pkg/session"
)

func NewPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Administrator password helpers",
	}
	cmd.AddCommand(newPasswordHashCommand())
	return cmd
}

func newPasswordHashCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD",
		Long: "Print a bcrypt hash suitable for ADMIN_PASSWORD.\n\n" +
			"Without an argument the password is read from the first line of stdin,\n" +
			"which keeps it out of the shell history.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
				return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
			}

			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(rt.reader).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given on the command line or stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := session.HashPassword(password, cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(rt.Writer(), hash)
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")
	return cmd
}
