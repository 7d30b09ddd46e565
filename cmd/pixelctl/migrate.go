package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pixelCV/internal/config"
	"pixelCV/internal/database"
)

type dbFlags struct {
	host     string
	port     int
	name     string
	user     string
	password string
	sslMode  string
}

func newMigrateCmd() *cobra.Command {
	var f dbFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Runs the schema migration against PostgreSQL. Connection flags fall back to
DATABASE_HOST, DATABASE_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD
and DATABASE_SSLMODE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := f.config()
			if err != nil {
				return fmt.Errorf("load database config: %w", err)
			}
			db, err := database.InitDatabase(dbCfg)
			if err != nil {
				return fmt.Errorf("init database: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已完成数据库迁移：%s@%s:%d/%s\n", dbCfg.User, dbCfg.Host, dbCfg.Port, dbCfg.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.host, "db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
	cmd.Flags().IntVar(&f.port, "db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
	cmd.Flags().StringVar(&f.name, "db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
	cmd.Flags().StringVar(&f.user, "db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
	cmd.Flags().StringVar(&f.password, "db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
	cmd.Flags().StringVar(&f.sslMode, "db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	return cmd
}

// config 合并命令行参数与环境变量。只需要数据库配置，
// 不走 config.Load，避免要求对象存储等无关的密钥。
func (f dbFlags) config() (config.DatabaseConfig, error) {
	host := firstNonEmpty(f.host, os.Getenv("DATABASE_HOST"), "localhost")
	name := firstNonEmpty(f.name, os.Getenv("POSTGRES_DB"))
	user := firstNonEmpty(f.user, os.Getenv("POSTGRES_USER"))
	password := firstNonEmpty(f.password, os.Getenv("POSTGRES_PASSWORD"))
	sslMode := firstNonEmpty(f.sslMode, os.Getenv("DATABASE_SSLMODE"), "disable")

	port := f.port
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if port <= 0 {
		port = 5432
	}

	if name == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if user == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if password == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslMode,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
