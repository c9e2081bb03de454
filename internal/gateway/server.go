package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/internal/audit"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/internal/telemetry"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/middleware"
	"github.com/nao1215/authgate/pkg/verifier"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// upstreamMSUser はms-userサービスを表すメトリクスのラベル。
const upstreamMSUser = "ms-user"

// msUserPrefix はms-userサービスへ転送するパスの接頭辞。転送時に取り除く。
const msUserPrefix = "/ms-user"

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はゲートウェイの設定。
	cfg *config.Config
	// verifier はBearerトークンの検証に使う。
	verifier verifier.Verifier
	// policy は認証不要のパス。
	policy middleware.PathPolicy
	// msUser はms-userサービスへの転送に使うクライアント。
	msUser *httpclient.Client

	logger  *zap.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	audit   *audit.Store
}

// Option はServerの依存を設定する。
type Option func(*Server)

// WithLogger はログ出力先を設定する。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics はメトリクスを設定する。設定した場合のみ/metricsを公開する。
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracer はリクエストのスパンを開始するトレーサーを設定する。
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) { s.tracer = tracer }
}

// WithAuditStore は監査ストアを設定する。設定した場合のみ/gateway/auditを公開する。
func WithAuditStore(store *audit.Store) Option {
	return func(s *Server) { s.audit = store }
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config, v verifier.Verifier, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("設定がnilです")
	}
	if v == nil {
		return nil, errors.New("Verifierがnilです")
	}

	s := &Server{
		cfg:      cfg,
		verifier: v,
		policy:   middleware.NewPathPolicy(cfg.Auth.ExemptPaths...),
		msUser:   httpclient.New(cfg.Upstream.MSUserURL, cfg.Upstream.Timeout),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger.Info("転送先を設定しました",
		zap.String("upstream", upstreamMSUser),
		zap.String("url", s.msUser.BaseURL()),
	)

	router := gin.New()
	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(s.logger))
	if s.tracer != nil {
		router.Use(telemetry.Middleware(s.tracer))
	}
	router.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	s.router = router
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxが終了するとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("ポート %s のリッスンに失敗: %w", s.cfg.Server.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnでHTTPサーバーを起動し、ctxが終了するとグレースフルシャットダウンする。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gatewayサービスを起動します", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証ゲートの外に置くエンドポイント
	s.router.GET("/health", s.handleHealth())
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	secured := s.securityChain()
	api := s.router.Group("", secured...)
	{
		// ms-userサービスへの転送
		api.Any(msUserPrefix+"/*path", s.handleForward(s.msUser, upstreamMSUser, msUserPrefix))

		gw := api.Group("/gateway")
		gw.GET("/whoami", s.handleWhoAmI())
		if s.audit != nil {
			gw.GET("/audit", s.handleAudit())
		}
	}

	// 未定義のパスも認証ゲートを通し、未認証なら401とする
	s.router.NoRoute(append(secured, func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "見つかりません"})
	})...)
}

// securityChain は認証ゲートとアクセス判定のミドルウェアを返す。
func (s *Server) securityChain() []gin.HandlerFunc {
	opts := []middleware.Option{
		middleware.WithLogger(s.logger),
		middleware.WithObserver(s.observers()...),
	}

	return []gin.HandlerFunc{
		middleware.Authenticate(s.verifier, append(opts,
			middleware.WithTimeout(s.cfg.Auth.VerifyTimeout),
			middleware.WithSkipPaths(s.policy),
		)...),
		middleware.RequireAuthenticated(s.policy, opts...),
	}
}

// observers は判定の通知先を返す。
func (s *Server) observers() []middleware.DecisionObserver {
	var obs []middleware.DecisionObserver
	if s.metrics != nil {
		obs = append(obs, s.metrics)
	}
	if s.audit != nil {
		obs = append(obs, s.audit)
	}
	return obs
}
