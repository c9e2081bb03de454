// Package migration はSQLiteデータベースのマイグレーションを管理する。
// embed.FSからSQLファイルを読み込み、バージョン管理テーブルで適用状態を追跡する。
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// File はマイグレーションファイル1件を表す。
type File struct {
	// Version はファイル名先頭の連番。
	Version int
	// Name はファイル名のうち説明部分。
	Name string

	path string
}

// Run はembedされたマイグレーションファイルを順序通りに適用し、適用したファイルを返す。
// 未適用のマイグレーションのみ実行し、適用済みのものはスキップする。
// ファイル名形式: 000001_description.up.sql
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, logger *zap.Logger) ([]File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	migrations, err := Collect(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	var done []File
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		if err := apply(ctx, db, fsys, m); err != nil {
			return done, fmt.Errorf("マイグレーション %06d の適用に失敗: %w", m.Version, err)
		}
		logger.Info("マイグレーションを適用しました",
			zap.Int("version", m.Version),
			zap.String("name", m.Name),
		)
		done = append(done, m)
	}

	return done, nil
}

// ensureMigrationsTable はバージョン管理テーブルを作成する。
func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// appliedVersions は適用済みのマイグレーションバージョンを取得する。
func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Collect はディレクトリからup.sqlファイルを収集してバージョン順にソートする。
// 命名規則に合わないファイルは無視する。
func Collect(fsys fs.FS, dir string) ([]File, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var migrations []File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}

		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		migrations = append(migrations, File{
			Version: version,
			Name:    strings.TrimSuffix(rest, ".up.sql"),
			path:    path.Join(dir, entry.Name()),
		})
	}

	slices.SortFunc(migrations, func(a, b File) int {
		return a.Version - b.Version
	})

	return migrations, nil
}

// apply は1つのマイグレーションをトランザクション内で適用する。
func apply(ctx context.Context, db *sql.DB, fsys fs.FS, m File) error {
	content, err := fs.ReadFile(fsys, m.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}

	return tx.Commit()
}
