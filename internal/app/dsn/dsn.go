package dsn

import (
	"fmt"
	"os"
)

// FromEnv собирает DSN строку для Postgres из переменных окружения
func FromEnv() string {
	host, existHost := os.LookupEnv("DB_HOST")
	if !existHost {
		return ""
	}
	port, existPort := os.LookupEnv("DB_PORT")
	if !existPort {
		port = "5432"
	}
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASS")
	dbname := os.Getenv("DB_NAME")
	sslmode := os.Getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=Europe/Paris",
		host, port, user, pass, dbname, sslmode)
}
