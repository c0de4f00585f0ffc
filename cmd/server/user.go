package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
	"github.com/spf13/cobra"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add <name> <password>",
		Short:   "Create an account",
		Example: "habitlog user add alice s3cret",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openDatabase(); err != nil {
				return err
			}

			user, err := service.NewAuthService(db.DB).CreateUser(args[0], args[1])
			if err != nil {
				if errors.Is(err, service.ErrUserExists) {
					return fmt.Errorf("user %q already exists", args[0])
				}
				return err
			}

			_, _ = fmt.Fprintf(color.Output, "%s created user %s\n", color.GreenString("✓"), color.New(color.Bold).Sprint(user.Username))
			return nil
		},
	})
	return cmd
}
