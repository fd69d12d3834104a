package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/datapush"
	"github.com/hkagei/jetblue-route-planning/src/datasource/email"
	"github.com/hkagei/jetblue-route-planning/src/datasource/file"
	"github.com/hkagei/jetblue-route-planning/src/processor"
	"github.com/hkagei/jetblue-route-planning/src/storage"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	configFile     = "config.yaml"
	dataConfigFile = "dataconfig.yaml"
	topN           = 5
)

// app 命令共享的运行环境
type app struct {
	configDir string
	logFile   string
	verbose   bool

	cfg      *config.Config
	dcfg     *config.DataConfig
	logger   *storage.Logger
	metrics  *datapush.Metrics
	notifier *datapush.Notifier
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "routeplan",
		Short:         "JetBlue route-month enrichment, scoring and fleet utilization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "./config", "directory holding config.yaml and dataconfig.yaml")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "log file (default: log_name from config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log stage details")

	root.AddCommand(
		a.runCmd(),
		a.watchCmd(),
		a.scheduleCmd(),
		a.mailCmd(),
		a.queryCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, dcfg, err := config.LoadConfig(a.configDir, configFile, dataConfigFile)
	if err != nil {
		return err
	}
	a.cfg, a.dcfg = cfg, dcfg

	logFile := a.logFile
	if logFile == "" {
		logFile = cfg.LogName
	}
	logger, err := storage.NewLogger(logFile, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.metrics = datapush.NewMetrics()
	a.notifier = datapush.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Retries, time.Duration(cfg.Webhook.Backoff))
	return nil
}

// runFile 读取输入文件并执行一次完整批处理
func (a *app) runFile(ctx context.Context, path, trigger string) (*datapush.Bundle, error) {
	raw, err := file.Load(path, a.cfg.SheetName, a.cfg.HeaderRow)
	if err != nil {
		a.metrics.Observe(trigger, nil, err)
		return nil, err
	}
	return a.runFrame(ctx, raw, path, trigger)
}

// runFrame 处理 -> 导出 -> 报告 -> 推送
func (a *app) runFrame(ctx context.Context, raw dataframe.DataFrame, source, trigger string) (*datapush.Bundle, error) {
	started := time.Now()
	log := a.logger.With(zap.String("trigger", trigger), zap.String("source", source))

	res, err := processor.NewDataProcessor(a.dcfg, log).Run(raw)
	if err != nil {
		a.metrics.Observe(trigger, nil, err)
		return nil, err
	}
	bundle, err := datapush.NewBundle(res, source, started)
	if err != nil {
		a.metrics.Observe(trigger, nil, err)
		return nil, err
	}
	if err := datapush.NewExporter(a.cfg, log).Export(bundle); err != nil {
		a.metrics.Observe(trigger, nil, err)
		return nil, err
	}
	a.metrics.Observe(trigger, bundle, nil)

	report(log.With(zap.String("run_id", bundle.RunID)), res)

	if a.notifier.Enabled() {
		if err := a.notifier.Send(ctx, datapush.Summary(bundle)); err != nil {
			log.Warning("webhook push failed", zap.Error(err))
		}
	}
	if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
		log.Warning("log rotation failed", zap.Error(err))
	}
	return bundle, nil
}

// report 记录利润率分布与前几名航线
func report(log *storage.Logger, res *processor.Result) {
	d := processor.Describe(res.Monthly.Col(processor.ColProfitMargin).Float())
	log.Info("profit margin distribution",
		zap.Int("count", d.Count),
		zap.Float64("mean", d.Mean),
		zap.Float64("std", d.Std),
		zap.Float64("min", d.Min),
		zap.Float64("p25", d.P25),
		zap.Float64("p50", d.P50),
		zap.Float64("p75", d.P75),
		zap.Float64("max", d.Max))

	for _, col := range []string{processor.ColTotalProfit, processor.ColOpportunityScore} {
		top, err := processor.TopRoutes(res.RouteSummary, col, topN)
		if err != nil {
			log.Warning("top routes unavailable", zap.String("by", col), zap.Error(err))
			continue
		}
		log.Info("top routes",
			zap.String("by", col),
			zap.Strings("routes", top.Col(processor.ColRoute).Records()),
			zap.Float64s("values", top.Col(col).Float()))
	}
}

func (a *app) runCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch over the input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = a.cfg.InputFile
			}
			b, err := a.runFile(cmd.Context(), input, "run")
			if err != nil {
				a.logger.Error("batch failed", zap.String("input", input), zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows, %d routes, %d aircraft types\n",
				b.RunID, len(b.Monthly), len(b.Summary), len(b.Fleet))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input csv/xlsx (default: input_file from config)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a batch whenever a csv/xlsx file is written to the watched directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = filepath.Dir(a.cfg.InputFile)
			}
			monitor, err := file.NewFileMonitor(dir)
			if err != nil {
				return err
			}
			defer monitor.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			file.SetupSignalHandler(cancel)

			a.logger.Info("watching for input files", zap.String("dir", monitor.Dir()))
			return monitor.Watch(ctx, func(path string) {
				if _, err := a.runFile(ctx, path, "watch"); err != nil {
					a.logger.Error("batch failed", zap.String("input", path), zap.Error(err))
				}
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch (default: directory of input_file)")
	return cmd
}

// startCron 按spec定时执行job
func (a *app) startCron(spec string, job func()) (*cron.Cron, error) {
	c := cron.New()
	if err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("创建定时任务失败: %w", err)
	}
	c.Start()
	return c, nil
}

func (a *app) scheduledBatch(ctx context.Context) func() {
	return func() {
		latest, err := file.FindLatest(filepath.Dir(a.cfg.InputFile), "")
		if err != nil {
			a.logger.Error("no input for scheduled run", zap.Error(err))
			return
		}
		if _, err := a.runFile(ctx, latest.FullPath, "schedule"); err != nil {
			a.logger.Error("batch failed", zap.String("input", latest.FullPath), zap.Error(err))
		}
	}
}

func (a *app) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch on the configured cron schedule over the newest input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			file.SetupSignalHandler(cancel)

			c, err := a.startCron(a.cfg.Schedule.Spec, a.scheduledBatch(ctx))
			if err != nil {
				return err
			}
			defer c.Stop()

			a.logger.Info("scheduler started", zap.String("spec", a.cfg.Schedule.Spec))
			<-ctx.Done()
			return nil
		},
	}
}

func (a *app) mailCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Fetch the newest matching mail attachment and run a batch on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := email.NewEmailClient(a.cfg.Email.Server, a.cfg.Email.Username, a.cfg.Email.Password, a.logger)
			handler := email.NewAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir, a.logger)
			dfw := &email.DataFrameWrapper{}

			if !keep {
				return a.checkMail(cmd.Context(), client, handler, dfw)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			file.SetupSignalHandler(cancel)

			interval := time.Duration(a.cfg.Email.CheckInterval).String()
			c, err := a.startCron("@every "+interval, func() {
				if err := a.checkMail(ctx, client, handler, dfw); err != nil {
					a.logger.Error("检查处理邮件失败", zap.Error(err))
				}
			})
			if err != nil {
				return err
			}
			defer c.Stop()

			a.logger.Info("邮件监控服务已启动", zap.String("interval", interval))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "keep polling the mailbox every email.check_interval")
	return cmd
}

func (a *app) checkMail(ctx context.Context, svc email.MailService, handler *email.AttachmentHandler, dfw *email.DataFrameWrapper) error {
	mail, err := email.CheckEmails(svc, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return err
	}
	if mail == nil || handler.IsProcessed(mail.UID) {
		return nil
	}
	if _, err := handler.Save(mail); err != nil {
		return err
	}

	attachment := mail.DataAttachment()
	if err := dfw.ReadAttachment(attachment, a.cfg.SheetName, a.cfg.HeaderRow); err != nil {
		return err
	}
	_, err = a.runFrame(ctx, dfw.GetDF(), dfw.Source(), "mail")
	return err
}

func (a *app) queryCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "query [name|sql]",
		Short: "Run a named or ad-hoc SQL query against the route_performance view",
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return nil
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				for _, name := range datapush.QueryNames() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			store, err := datapush.OpenStore(filepath.Join(a.cfg.OutputDir, a.cfg.Export.SQLitePath))
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Query(args[0])
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list named queries")
	return cmd
}

// renderTable NULL显示为空
func renderTable(w io.Writer, res *datapush.QueryResult) error {
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = formatValue(v)
		}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(res.Columns...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.4f", x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /logs and /metrics while running the batch on the cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			file.SetupSignalHandler(cancel)

			c, err := a.startCron(a.cfg.Schedule.Spec, a.scheduledBatch(ctx))
			if err != nil {
				return err
			}
			defer c.Stop()

			srv := &http.Server{Addr: addr, Handler: a.newWebUI()}
			go func() {
				<-ctx.Done()
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				srv.Shutdown(shutdownCtx)
			}()

			a.logger.Info("web ui started", zap.String("addr", addr), zap.String("spec", a.cfg.Schedule.Spec))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
