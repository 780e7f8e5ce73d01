package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"mintpilot/internal/agent"
	"mintpilot/internal/config"
	"mintpilot/internal/gateway/database"
	mktgw "mintpilot/internal/gateway/marketing"
	"mintpilot/internal/gateway/provider"
	sol "mintpilot/internal/gateway/solana"
	"mintpilot/internal/logger"
	"mintpilot/internal/market"
	"mintpilot/internal/scheduler"
	profilehttp "mintpilot/internal/transport/http/profile"
	statushttp "mintpilot/internal/transport/http/status"
)

func main() {
	cfgPath := "config.toml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("配置校验失败: %v", err)
		os.Exit(1)
	}

	if err := logger.Configure(logger.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		File:   cfg.App.LogFile,
	}); err != nil {
		logger.Errorf("初始化日志失败: %v", err)
		os.Exit(1)
	}
	logger.Infof("mintpilot 启动")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 模型提供方
	llm, err := provider.Build(provider.ModelCfg{
		Provider:   cfg.AI.Provider,
		APIURL:     cfg.AI.APIURL,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Enabled:    true,
		MaxRetries: cfg.AI.MaxRetries,
		Headers:    cfg.AI.Headers,
	}, cfg.AI.Timeout())
	if err != nil {
		logger.Errorf("构建模型提供方失败: %v", err)
		os.Exit(1)
	}
	logger.Infof("模型提供方就绪: %s", llm.ID())

	// 链上门面
	chain, err := sol.New(ctx, sol.Config{
		RPCURL:        cfg.Solana.RPCURL,
		WSURL:         cfg.Solana.WSURL,
		WalletSecret:  cfg.Solana.WalletSecret,
		ProgramID:     cfg.Solana.ProgramID,
		TokenMint:     cfg.Solana.TokenMint,
		FeeAccount:    cfg.Solana.FeeAccount,
		Slippage:      cfg.Solana.Slippage,
		PriorityFee:   cfg.Solana.PriorityFee,
		TokenDecimals: cfg.Solana.TokenDecimals,
		TxTimeout:     time.Duration(cfg.Solana.TxTimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Errorf("连接 Solana 失败: %v", err)
		os.Exit(1)
	}
	defer chain.Close()

	// 决策落库
	store, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Errorf("打开决策存储失败: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	snapshots := market.NewSnapshotBuilder(chain)

	// WS 实时价格跟踪（日志与状态观测，不参与决策）
	watcher := agent.NewPriceWatcher(chain, 5)
	if err := watcher.Start(ctx); err != nil {
		logger.Warnf("启动价格订阅失败（轮询不受影响）: %v", err)
	}

	// 交易循环
	trading := agent.NewTradingDriver(agent.TradingParams{
		Provider:  llm,
		Snapshots: snapshots,
		Executor:  chain,
		Store:     store,
		Trading:   cfg.Trading,
		Buyback:   cfg.Buyback,
		MaxTokens: cfg.AI.MaxTokens,
	})

	// 营销循环
	var mktDriver *agent.MarketingDriver
	var mktClient *mktgw.Client
	if cfg.Marketing.Enabled {
		mktClient, err = mktgw.New(mktgw.Config{
			BaseURL: cfg.Marketing.APIURL,
			Timeout: cfg.Marketing.Timeout(),
		})
		if err != nil {
			logger.Errorf("构建营销客户端失败: %v", err)
			os.Exit(1)
		}
		mktDriver = agent.NewMarketingDriver(agent.MarketingParams{
			Provider:  llm,
			Backend:   mktClient,
			Store:     store,
			Cfg:       cfg.Marketing,
			MaxTokens: cfg.AI.MaxTokens,
		})
	}

	// 定时任务
	sched := scheduler.New(ctx, chain, mktClient, store, cfg.Buyback)
	if err := sched.RegisterAll(cfg.Schedule); err != nil {
		logger.Errorf("注册定时任务失败: %v", err)
		os.Exit(1)
	}

	// HTTP 服务
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := engine.Group("/api")
	statusRouter := statushttp.NewRouter(statushttp.Params{
		Trading:   trading,
		Marketing: marketingStatus(mktDriver),
		Store:     store,
		Wallet:    chain.WalletAddress(),
	})
	statusRouter.Register(api)
	profilehttp.NewRouter(cfg.Server.ProfilesPath).Register(api.Group("/profiles"))

	server := &http.Server{Addr: cfg.Server.Listen, Handler: engine}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("HTTP 服务监听 %s", cfg.Server.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Trading.Enabled {
		if err := trading.Start(ctx); err != nil {
			logger.Errorf("启动交易循环失败: %v", err)
			os.Exit(1)
		}
		defer trading.Stop()
	}
	if mktDriver != nil {
		if err := mktDriver.Start(ctx); err != nil {
			logger.Errorf("启动营销循环失败: %v", err)
			os.Exit(1)
		}
		defer mktDriver.Stop()
	}
	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	logger.Infof("收到退出信号，开始关停")
	if err := g.Wait(); err != nil {
		logger.Errorf("关停出错: %v", err)
		os.Exit(1)
	}
	logger.Infof("mintpilot 已退出")
}

// marketingStatus 避免把 nil *MarketingDriver 装进非空接口。
func marketingStatus(d *agent.MarketingDriver) statushttp.LoopStatus {
	if d == nil {
		return nil
	}
	return d
}
