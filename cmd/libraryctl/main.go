// Точка входа libraryctl — CLI оператора библиотеки.
// Работает с тем же REST API, что и веб-интерфейс: вход, каталог,
// массовая загрузка CSV с отслеживанием прогресса, выдачи и возвраты.
// Токены и id задачи загрузки хранятся в файле учётных данных.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/config"
	"github.com/swanith1234/LibraryManagementSystem/internal/tokenstore"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка чтения .env:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app — общее состояние команд: глобальные флаги, логгер, файл учётных данных.
type app struct {
	apiURL      string
	credentials string
	caCertPath  string
	timeout     time.Duration
	verbose     bool

	logger *slog.Logger
	store  *tokenstore.File
	in     *bufio.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:               "libraryctl",
		Short:             "CLI оператора библиотеки",
		Version:           config.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.store.Err()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", os.Getenv("LM_API_URL"), "базовый URL REST API (LM_API_URL)")
	flags.StringVar(&a.credentials, "credentials", "", "файл учётных данных (по умолчанию libraryctl/credentials.json в каталоге конфигурации)")
	flags.StringVar(&a.caCertPath, "ca-cert", os.Getenv("LM_API_CA_CERT"), "CA-сертификат для https API")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "таймаут одного запроса к API")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "подробный лог в stderr")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newBooksCmd(a),
		newUploadCmd(a),
		newBorrowsCmd(a),
	)
	return root
}

// setup создаёт логгер и открывает файл учётных данных.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	path := a.credentials
	if path == "" {
		var err error
		if path, err = tokenstore.DefaultPath(); err != nil {
			return err
		}
	}
	store, err := tokenstore.Open(path, a.logger)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// baseURL — URL из флага или окружения, иначе тот, с которым выполнен вход.
func (a *app) baseURL() (string, error) {
	if u := strings.TrimSpace(a.apiURL); u != "" {
		return strings.TrimRight(u, "/"), nil
	}
	if u := a.store.APIURL(); u != "" {
		return u, nil
	}
	return "", errors.New("не задан URL API: укажите --api-url или LM_API_URL")
}

// client возвращает клиент REST API, привязанный к файлу учётных данных.
func (a *app) client() (*apiclient.Client, error) {
	base, err := a.baseURL()
	if err != nil {
		return nil, err
	}
	httpClient, err := apiclient.NewHTTPClient(a.caCertPath, a.timeout)
	if err != nil {
		return nil, err
	}
	return apiclient.NewGateway(base, httpClient, a.logger).Client(a.store), nil
}

// readLine читает строку ввода после приглашения в stderr.
func (a *app) readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := a.reader(cmd).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("чтение ввода: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword читает пароль без эха, если ввод — терминал.
func (a *app) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("чтение пароля: %w", err)
		}
		return strings.TrimSpace(string(password)), nil
	}
	return a.readLine(cmd, prompt)
}

func (a *app) reader(cmd *cobra.Command) *bufio.Reader {
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	return a.in
}
