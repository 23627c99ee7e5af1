package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mutuelle/internal/app/auth"
	"mutuelle/internal/app/dsn"
	"mutuelle/internal/app/repository"
	"mutuelle/internal/app/role"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Миграция схемы БД",
	Long: `Создаёт и обновляет таблицы users, subscriptions и documents.

Подкоманды:
  seed-admin - завести администратора из ADMIN_EMAIL / ADMIN_PASSWORD
  status     - количество подписок по статусам`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openRepository(); err != nil {
			return err
		}
		logrus.Info("Database migration completed successfully")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Создать администратора",
	RunE:  runSeedAdmin,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Сводка по подпискам",
	RunE:  runStatus,
}

var adminName string

func init() {
	seedAdminCmd.Flags().StringVar(&adminName, "name", "Administrateur", "имя администратора")
	rootCmd.AddCommand(seedAdminCmd, statusCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// openRepository подключается к Postgres; миграция выполняется при подключении
func openRepository() (*repository.Repository, error) {
	dsnStr := dsn.FromEnv()
	if dsnStr == "" {
		return nil, errors.New("DSN string is empty. Check your .env file")
	}

	repo, err := repository.New(dsnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logrus.Info("Connected to database successfully")
	return repo, nil
}

func runSeedAdmin(cmd *cobra.Command, args []string) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	repo, err := openRepository()
	if err != nil {
		return err
	}

	exists, err := repo.UserExistsByEmail(email)
	if err != nil {
		return err
	}
	if exists {
		logrus.Infof("admin %s already exists", email)
		return nil
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := repo.CreateUser(email, hashed, adminName, role.Admin)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	logrus.Infof("admin %s created (id %d)", user.Email, user.ID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	counts, err := repo.CountSubscriptionsByStatus()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Subscriptions in database:")
	if len(counts) == 0 {
		fmt.Fprintln(out, "  none")
	}
	for _, c := range counts {
		fmt.Fprintf(out, "  %-10s %d\n", c.Status, c.Count)
	}
	return nil
}
