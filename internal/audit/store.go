package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/authgate/pkg/event"
	"github.com/nao1215/authgate/pkg/middleware"
	"github.com/nao1215/authgate/pkg/migration"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultLimit はRecentのlimitに0以下を指定した場合の件数。
const DefaultLimit = 50

// MaxLimit はRecentで取得できる最大件数。
const MaxLimit = 500

// DefaultBufferSize は書き込み待ちのイベントを保持する件数。
const DefaultBufferSize = 256

// timeLayout は作成日時の保存形式。文字列比較で時刻順になるよう固定長にする。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// pending は書き込みゴルーチンへ渡す要素。flushedが設定されていれば、それまでの書き込み完了を通知する。
type pending struct {
	event   *event.Event
	flushed chan struct{}
}

// Store は認証判定イベントを保存するSQLiteストア。
// ObserveDecisionはイベントをバッファに積み、書き込みは専用のゴルーチンが行う。
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// mu はqueueのcloseと送信を排他する。
	mu     sync.RWMutex
	closed bool
	queue  chan pending
	done   chan struct{}
}

// Open はdsnのSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("監査ストアのDSNが空です")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("監査ストアのオープンに失敗: %w", err)
	}
	// SQLiteは書き込みを直列化する必要がある
	db.SetMaxOpenConns(1)

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("監査ストアのマイグレーションに失敗: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		queue:  make(chan pending, DefaultBufferSize),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Close は書き込み待ちのイベントをすべて保存してからデータベースを閉じる。
func (s *Store) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}

// writeLoop はqueueのイベントを順に保存する。queueがcloseされると終了する。
func (s *Store) writeLoop() {
	defer close(s.done)

	for p := range s.queue {
		if p.flushed != nil {
			close(p.flushed)
			continue
		}
		s.write(context.Background(), p.event)
	}
}

// write はイベントを保存し、失敗すればログに出力する。
func (s *Store) write(ctx context.Context, e *event.Event) {
	if err := s.Record(ctx, e); err != nil {
		s.logger.Error("監査イベントの保存に失敗しました",
			zap.String("event_type", string(e.EventType)),
			zap.String("request_id", e.RequestID),
			zap.Error(err),
		)
	}
}

// enqueue はイベントを書き込み待ちに積む。
// バッファが満杯の場合は呼び出し元で直接保存し、イベントを落とさない。
func (s *Store) enqueue(ctx context.Context, e *event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("監査ストアは閉じられています",
			zap.String("event_type", string(e.EventType)),
			zap.String("request_id", e.RequestID),
		)
		return
	}

	select {
	case s.queue <- pending{event: e}:
	default:
		s.write(ctx, e)
	}
}

// Flush はこれまでに積まれたイベントの保存が終わるまで待つ。
func (s *Store) Flush(ctx context.Context) error {
	flushed := make(chan struct{})

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.queue <- pending{flushed: flushed}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Record はイベントを1件保存する。
func (s *Store) Record(ctx context.Context, e *event.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, request_id, event_type, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, string(e.EventType), string(e.Data), e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("監査イベントの保存に失敗: %w", err)
	}
	return nil
}

// Recent は全主体のイベントを新しい順に最大limit件返す。
// 書き込み待ちのイベントを保存してから取得する。
func (s *Store) Recent(ctx context.Context, limit int) ([]*event.Event, error) {
	return s.query(ctx,
		`SELECT id, request_id, event_type, data, created_at FROM auth_events
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		normalizeLimit(limit),
	)
}

// RecentBySubject はsubjectのイベントのみを新しい順に最大limit件返す。
// 主体の無いイベント（未認証のリクエスト）は含まない。
func (s *Store) RecentBySubject(ctx context.Context, subject string, limit int) ([]*event.Event, error) {
	if subject == "" {
		return []*event.Event{}, nil
	}
	return s.query(ctx,
		`SELECT id, request_id, event_type, data, created_at FROM auth_events
		 WHERE json_extract(data, '$.subject') = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		subject, normalizeLimit(limit),
	)
}

// normalizeLimit はlimitをDefaultLimitとMaxLimitの範囲に収める。
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// query は書き込み待ちを保存してからイベントを取得する。
func (s *Store) query(ctx context.Context, q string, args ...any) ([]*event.Event, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, fmt.Errorf("書き込み待ちの保存に失敗: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("監査イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []*event.Event{}
	for rows.Next() {
		var (
			e         event.Event
			eventType string
			data      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &eventType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("監査イベントの読み取りに失敗: %w", err)
		}
		e.EventType = event.Type(eventType)
		e.Data = []byte(data)
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("作成日時の解析に失敗: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監査イベントの取得に失敗: %w", err)
	}
	return events, nil
}

// ObserveDecision は判定をイベントに変換し、書き込み待ちに積む。
// 保存はリクエストの処理とは別に行い、失敗してもエラーは返さずログに出力する。
func (s *Store) ObserveDecision(ctx context.Context, d middleware.Decision) {
	eventType, ok := eventTypeOf(d)
	if !ok {
		return
	}

	e, err := event.New(d.RequestID, eventType, event.DecisionData{
		Subject:        d.Subject,
		Method:         d.Method,
		Path:           d.Path,
		Reason:         d.Reason,
		DurationMillis: d.Duration.Milliseconds(),
	})
	if err != nil {
		s.logger.Error("監査イベントの生成に失敗しました", zap.Error(err))
		return
	}

	// リクエストの取り消しに関係なく記録する
	s.enqueue(context.WithoutCancel(ctx), e)
}

// eventTypeOf は判定に対応するイベントの種類を返す。
func eventTypeOf(d middleware.Decision) (event.Type, bool) {
	switch d.Outcome {
	case middleware.OutcomeAuthenticated:
		return event.TypeRequestAuthenticated, true
	case middleware.OutcomeRejected:
		return event.TypeRequestRejected, true
	case middleware.OutcomeNoToken:
		return event.TypeRequestPassedThrough, true
	case middleware.OutcomeSkipped:
		return event.TypeGateSkipped, true
	case middleware.OutcomeAllowed:
		return event.TypeAccessGranted, true
	case middleware.OutcomeDenied:
		return event.TypeAccessDenied, true
	case middleware.OutcomeExempt:
		return event.TypeAccessExempted, true
	default:
		return "", false
	}
}
