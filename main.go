package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mokuro-hub/mokuro-hub/internal/catalog"
	"github.com/mokuro-hub/mokuro-hub/internal/config"
	"github.com/mokuro-hub/mokuro-hub/internal/gateway"
	"github.com/mokuro-hub/mokuro-hub/internal/logging"
	"github.com/mokuro-hub/mokuro-hub/internal/server"
	"github.com/mokuro-hub/mokuro-hub/internal/server/routes"
	"github.com/mokuro-hub/mokuro-hub/internal/thumbnail"
	"github.com/mokuro-hub/mokuro-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["libraries"] = len(cfg.Libraries)
		fields["credentials"] = config.CredentialModes(cfg.Libraries)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	registry, err := server.NewLibraryRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 Library 注册表失败: %v\n", err)
		return 1
	}

	// 启动遵循“配置 → Registry → 磁盘缓存 → Fiber server”顺序，
	// 保证所有请求共享统一的 gateway 与缓存实例。
	store, err := thumbnail.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	gw := gateway.New(httpClient, logger)
	lister := catalog.NewLister(gw, logger)
	covers := thumbnail.NewResolver(thumbnail.ResolverOptions{
		Lister:    lister,
		Gateway:   gw,
		Store:     store,
		Logger:    logger,
		MaxWidth:  cfg.Global.ThumbnailMaxWidth,
		MaxHeight: cfg.Global.ThumbnailMaxHeight,
		Quality:   cfg.Global.ThumbnailQuality,
	})

	fields := logging.BaseFields("startup", opts.configPath)
	fields["libraries"] = len(cfg.Libraries)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["credentials"] = config.CredentialModes(cfg.Libraries)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, registry, gw, lister, covers, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("mokuro-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 MOKURO_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("MOKURO_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(
	cfg *config.Config,
	registry *server.LibraryRegistry,
	gw *gateway.Gateway,
	lister *catalog.Lister,
	covers *thumbnail.Resolver,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}

	routes.RegisterProxyRoute(app, gw)
	routes.RegisterCatalogRoutes(app, routes.CatalogDeps{
		Registry: registry,
		Lister:   lister,
		Covers:   covers,
		Logger:   logger,
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
