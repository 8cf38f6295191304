package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/uploadstate"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
)

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Каталог книг",
	}
	cmd.AddCommand(newBooksListCmd(a), newBooksUploadCmd(a))
	return cmd
}

func newBooksListCmd(a *app) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список книг",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			books, err := service.NewCatalogService(client, 0, 0, a.logger).Books(cmd.Context(), search)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tНАЗВАНИЕ\tАВТОР\tISBN\tДОСТУПНО")
			for _, b := range books {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
					b.ID, b.Title, b.Author, orDash(b.ISBN), b.AvailableCopies, b.TotalCopies)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "подстрока в названии, авторе, ISBN, категории, издательстве или языке")
	return cmd
}

// trackFlags — параметры опроса прогресса загрузки.
type trackFlags struct {
	wait        bool
	interval    time.Duration
	maxDuration time.Duration
}

func (f *trackFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.wait, "wait", "w", false, "дождаться завершения загрузки")
	cmd.Flags().DurationVar(&f.interval, "interval", 2*time.Second, "период опроса прогресса")
	cmd.Flags().DurationVar(&f.maxDuration, "max-duration", 30*time.Minute, "предельная длительность ожидания")
}

func (f *trackFlags) options() service.TrackerOptions {
	return service.TrackerOptions{Interval: f.interval, MaxDuration: f.maxDuration}
}

func newBooksUploadCmd(a *app) *cobra.Command {
	var tf trackFlags

	cmd := &cobra.Command{
		Use:   "upload FILE.csv",
		Short: "Массовая загрузка каталога из CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tracker := service.NewUploadTracker(client, a.store, tf.options(), a.logger)
			taskID, err := tracker.Submit(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				if errors.Is(err, service.ErrUploadInProgress) {
					return fmt.Errorf("%w; libraryctl upload status --wait или libraryctl upload forget", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Задача загрузки: %s\n", taskID)

			if !tf.wait {
				return nil
			}
			return track(cmd, tracker, taskID)
		},
	}

	tf.register(cmd)
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Задача массовой загрузки",
	}
	cmd.AddCommand(newUploadStatusCmd(a), newUploadForgetCmd(a))
	return cmd
}

func newUploadStatusCmd(a *app) *cobra.Command {
	var tf trackFlags

	cmd := &cobra.Command{
		Use:   "status [TASK_ID]",
		Short: "Прогресс задачи загрузки (по умолчанию сохранённой)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored := a.store.TaskID()
			taskID := stored
			if len(args) == 1 {
				taskID = args[0]
			}
			if taskID == "" {
				return errors.New("нет сохранённой задачи загрузки")
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			if tf.wait {
				var tasks service.TaskStore = a.store
				if taskID != stored {
					// Чужая задача не должна стирать сохранённую
					tasks = service.NewTaskRegistry(1, tf.maxDuration).For("libraryctl")
				}
				return track(cmd, service.NewUploadTracker(client, tasks, tf.options(), a.logger), taskID)
			}

			task, err := client.UploadProgress(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			printProgress(cmd, *task)
			if task.Status.Terminal() && taskID == stored {
				a.store.ClearTaskID()
			}
			return nil
		},
	}

	tf.register(cmd)
	return cmd
}

func newUploadForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Забыть сохранённую задачу загрузки",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.store.ClearTaskID()
			fmt.Fprintln(cmd.OutOrStdout(), "Задача загрузки забыта")
			return nil
		},
	}
}

// track опрашивает прогресс до завершения. Ctrl+C оставляет id задачи
// в файле учётных данных.
func track(cmd *cobra.Command, tracker *service.UploadTracker, taskID string) error {
	task, err := tracker.Track(cmd.Context(), taskID, func(p service.Progress) {
		if p.State == uploadstate.Tracking {
			printProgress(cmd, p.Task)
		}
	})
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(cmd.ErrOrStderr(), "Ожидание прервано, задача %s сохранена: libraryctl upload status --wait\n", taskID)
		return err
	case err != nil:
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Загрузка завершена: обработано %d из %d, ошибок %d\n",
		task.Processed.Int(), task.Total.Int(), task.Failed.Int())
	return nil
}

func printProgress(cmd *cobra.Command, task model.UploadTask) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %.0f%% (%d/%d, ошибок %d)\n",
		task.Status, task.Percent(), task.Processed.Int(), task.Total.Int(), task.Failed.Int())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
