package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
)

// borrowFlags — общие флаги списков выдач.
type borrowFlags struct {
	status   string
	page     int
	pageSize int
}

func (f *borrowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", string(model.BorrowActive), "active, returned или overdue")
	cmd.Flags().IntVar(&f.page, "page", 1, "номер страницы")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 20, "размер страницы")
}

func (f *borrowFlags) parseStatus() (model.BorrowStatus, error) {
	status := model.BorrowStatus(f.status)
	if !status.Valid() {
		return "", fmt.Errorf("неизвестный статус %q: active, returned или overdue", f.status)
	}
	return status, nil
}

func newBorrowsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "borrows",
		Short: "Выдачи и возвраты",
	}
	cmd.AddCommand(
		newBorrowsListCmd(a),
		newBorrowsSearchCmd(a),
		newBorrowsFineCmd(a),
		newBorrowsReturnCmd(a),
		newBorrowsLendCmd(a),
	)
	return cmd
}

// borrowService создаёт сервис выдач поверх клиента CLI.
func (a *app) borrowService(pageSize int) (*service.BorrowService, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return service.NewBorrowService(client, pageSize, a.logger), nil
}

func newBorrowsListCmd(a *app) *cobra.Command {
	var bf borrowFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Записи о выдаче",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := bf.parseStatus()
			if err != nil {
				return err
			}
			svc, err := a.borrowService(bf.pageSize)
			if err != nil {
				return err
			}
			page, err := svc.List(cmd.Context(), status, bf.page)
			if err != nil {
				return err
			}
			return printBorrows(cmd.OutOrStdout(), page)
		},
	}

	bf.register(cmd)
	return cmd
}

func newBorrowsSearchCmd(a *app) *cobra.Command {
	var (
		bf borrowFlags
		by string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Поиск выдач по штрихкоду или пользователю",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := bf.parseStatus()
			if err != nil {
				return err
			}
			svc, err := a.borrowService(bf.pageSize)
			if err != nil {
				return err
			}
			page, err := svc.Search(cmd.Context(), service.SearchQuery{
				Text:   args[0],
				Mode:   service.ParseSearchMode(by),
				Status: status,
				Page:   bf.page,
			})
			if err != nil {
				return err
			}
			return printBorrows(cmd.OutOrStdout(), page)
		},
	}

	bf.register(cmd)
	cmd.Flags().StringVar(&by, "by", string(service.SearchByBarcode), "barcode или user (username либо email)")
	return cmd
}

func newBorrowsFineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fine BORROW_ID",
		Short: "Штраф по записи (рассчитывает сервер)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.borrowService(0)
			if err != nil {
				return err
			}
			quote := svc.CalculateFine(cmd.Context(), args[0])
			if !quote.Known() {
				return fmt.Errorf("штраф неизвестен: %w", quote.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Штраф: %.2f\n", quote.Amount)
			return nil
		},
	}
}

func newBorrowsReturnCmd(a *app) *cobra.Command {
	var (
		condition string
		remarks   string
		finePaid  bool
	)

	cmd := &cobra.Command{
		Use:   "return BORROW_ID",
		Short: "Подтвердить возврат экземпляра",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.borrowService(0)
			if err != nil {
				return err
			}
			outcome, err := svc.ConfirmReturn(cmd.Context(), service.ReturnInput{
				BorrowID:  args[0],
				Condition: condition,
				Remarks:   remarks,
				FinePaid:  finePaid,
				Page:      1,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			receipt := outcome.Receipt
			if receipt.Message != "" {
				fmt.Fprintln(out, receipt.Message)
			}
			fmt.Fprintf(out, "Штраф: %.2f", receipt.Fine)
			if receipt.FinePaymentStatus != "" {
				fmt.Fprintf(out, " (%s)", receipt.FinePaymentStatus)
			}
			fmt.Fprintln(out)
			if outcome.Active != nil {
				fmt.Fprintf(out, "Активных выдач: %d\n", outcome.Active.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&condition, "condition", string(model.ConditionGood), "состояние: excellent, good, fair, poor, damaged")
	cmd.Flags().StringVar(&remarks, "remarks", "", "примечание")
	cmd.Flags().BoolVar(&finePaid, "fine-paid", false, "штраф оплачен")
	return cmd
}

func newBorrowsLendCmd(a *app) *cobra.Command {
	var userID, copyID string

	cmd := &cobra.Command{
		Use:   "lend",
		Short: "Выдать экземпляр пользователю",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.borrowService(0)
			if err != nil {
				return err
			}
			receipt, err := svc.Lend(cmd.Context(), service.LendInput{UserID: userID, CopyID: copyID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Выдача %s: %s (%s), вернуть до %s\n",
				receipt.BorrowID, receipt.BookTitle, receipt.Barcode, formatDate(receipt.DueDate))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "id пользователя")
	cmd.Flags().StringVar(&copyID, "copy", "", "id экземпляра")
	return cmd
}

func printBorrows(w io.Writer, page *service.BorrowPage) error {
	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tКНИГА\tПОЛЬЗОВАТЕЛЬ\tШТРИХКОД\tВЫДАНА\tСРОК\tВОЗВРАТ\tШТРАФ")
	for _, r := range page.Records {
		due := formatDate(r.DueDate)
		if r.Overdue(now) {
			due += " !"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
			r.ID, r.Book, r.User, orDash(r.Barcode),
			formatDate(r.BorrowDate), due, formatDate(r.ReturnDate), r.Fine)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Страница %d из %d, всего %d\n", page.Page, page.TotalPages(), page.Total)
	return err
}

func formatDate(t model.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
