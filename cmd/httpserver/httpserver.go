// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/accountdelivery"
	"github.com/go-petr/pet-wallet/internal/accountservice"
	"github.com/go-petr/pet-wallet/internal/eventpub"
	"github.com/go-petr/pet-wallet/internal/history"
	"github.com/go-petr/pet-wallet/internal/ledgermem"
	"github.com/go-petr/pet-wallet/internal/ledgerrepo"
	"github.com/go-petr/pet-wallet/internal/locker"
	"github.com/go-petr/pet-wallet/internal/middleware"
	"github.com/go-petr/pet-wallet/internal/walletdelivery"
	"github.com/go-petr/pet-wallet/internal/walletservice"
	"github.com/go-petr/pet-wallet/pkg/configpkg"
	"github.com/go-petr/pet-wallet/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config

	closers []io.Closer
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// Close releases the publisher and lock backend connections. The database
// connection belongs to the caller.
func (s *Server) Close() error {
	var first error

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}

	s.closers = nil

	return first
}

// ledgerStore is satisfied by both the postgres and the in-memory ledger.
type ledgerStore interface {
	walletservice.Store
	history.Finder
	accountservice.Repo
}

func newStore(conn *sql.DB, config configpkg.Config) (ledgerStore, error) {
	switch config.LedgerStore {
	case configpkg.StoreMemory:
		return ledgermem.New(), nil
	case "", configpkg.StorePostgres:
		if conn == nil {
			return nil, errors.New("postgres ledger store needs a database connection")
		}

		return ledgerrepo.NewRepoPGS(conn), nil
	default:
		return nil, errors.Errorf("unknown ledger store %q", config.LedgerStore)
	}
}

func (s *Server) newLocker(config configpkg.Config) (walletservice.Locker, error) {
	switch config.LockBackend {
	case "", configpkg.LockLocal:
		return locker.NewLocal(), nil
	case configpkg.LockRedis:
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		s.closers = append(s.closers, client)

		return locker.NewRedis(client, config.LockExpiry), nil
	default:
		return nil, errors.Errorf("unknown lock backend %q", config.LockBackend)
	}
}

func (s *Server) newPublisher(config configpkg.Config) walletservice.Publisher {
	if len(config.KafkaBrokers) == 0 {
		return eventpub.Nop{}
	}

	pub := eventpub.NewKafka(config.KafkaBrokers, config.KafkaTopic)
	s.closers = append(s.closers, pub)

	return pub
}

// New creates Server type with instantiated domains and routes.
//
// conn may be nil when the in-memory ledger store is configured.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	server := &Server{
		DB:     conn,
		Config: config,
	}

	store, err := newStore(conn, config)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create ledger store")
	}

	lockTable, err := server.newLocker(config)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create lock table")
	}

	tokenMaker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		server.Close()
		return nil, errors.Wrap(err, "cannot create token maker")
	}

	accountService := accountservice.New(store)
	walletService := walletservice.New(
		store,
		lockTable,
		server.newPublisher(config),
		history.New(store),
		walletservice.Options{
			LockTimeout:    config.LockTimeout,
			CommitAttempts: config.CommitAttempts,
			PublishTimeout: config.PublishTimeout,
		},
	)

	accountHandler := accountdelivery.NewHandler(accountService)
	walletHandler := walletdelivery.NewHandler(walletService, accountService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	authRoutes := engine.Group("/", middleware.AuthMiddleware(tokenMaker))

	authRoutes.POST("/accounts", accountHandler.Create)
	authRoutes.GET("/accounts/me", accountHandler.Get)
	authRoutes.GET("/accounts/wallets/:wallet", accountHandler.Lookup)

	walletHandler.Routes(authRoutes.Group("/transactions"))

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := walletdelivery.RegisterValidators(v); err != nil {
			server.Close()
			return nil, errors.Wrap(err, "cannot register money validator")
		}
	}

	server.Engine = engine

	return server, nil
}
