package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/identity"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Вход в REST API; токены сохраняются в файле учётных данных",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			if email == "" {
				if email, err = a.readLine(cmd, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.readPassword(cmd, "Пароль: "); err != nil {
					return err
				}
			}
			if email == "" || password == "" {
				return errors.New("email и пароль обязательны")
			}

			session := identity.NewStore(client, a.store, nil, a.logger)
			if err := session.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			base, _ := a.baseURL()
			a.store.SetAPIURL(base)

			u := session.Snapshot().User
			fmt.Fprintf(cmd.OutOrStdout(), "Вход выполнен: %s (%s)\n", u.DisplayName(), u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email пользователя")
	cmd.Flags().StringVar(&password, "password", "", "пароль (без флага запрашивается интерактивно)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Удалить сохранённые токены (без запроса к серверу)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.store.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Выход выполнен")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Показать текущего пользователя и срок действия токена",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			session := identity.NewStore(client, a.store, nil, a.logger)
			if err := session.Bootstrap(cmd.Context()); err != nil {
				if errors.Is(err, identity.ErrNotAuthenticated) {
					return errors.New("вход не выполнен: libraryctl login")
				}
				return err
			}

			u := session.Snapshot().User
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Пользователь: %s <%s>\n", u.DisplayName(), u.Email)
			fmt.Fprintf(out, "ID:           %s\n", u.ID)
			fmt.Fprintf(out, "Роль:         %s\n", u.Role)
			if exp, ok := apiclient.TokenExpiry(a.store.AccessToken()); ok {
				fmt.Fprintf(out, "Токен до:     %s\n", exp.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}
