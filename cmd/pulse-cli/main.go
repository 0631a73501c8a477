package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/PlayPulse/internal/bootstrap"
	"github.com/yuqie6/PlayPulse/internal/pkg/config"
	"github.com/yuqie6/PlayPulse/internal/schema"
	"github.com/yuqie6/PlayPulse/internal/service"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

// 不需要打开数据库的子命令
const skipCoreAnnotation = "skip-core"

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "PlayPulse - 游玩计时与游戏健康指标",
		Long:  `PlayPulse 记录每次游玩的会话时长，并按天计算游戏健康分。`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := cmd.Annotations[skipCoreAnnotation]; ok {
				return nil
			}
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(playthroughsCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd 配置文件管理
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "写出默认配置文件",
		Annotations: map[string]string{skipCoreAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if force {
				if err := config.WriteFile(path, config.Default()); err != nil {
					return err
				}
				fmt.Printf("✅ 已覆盖配置文件: %s\n", path)
				return nil
			}
			written, err := config.WriteDefaultIfMissing(path)
			if err != nil {
				return err
			}
			if written {
				fmt.Printf("✅ 已生成配置文件: %s\n", path)
			} else {
				fmt.Printf("配置文件已存在: %s（使用 --force 覆盖）\n", path)
			}
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的配置文件")

	cmd.AddCommand(initCmd)
	return cmd
}

// playthroughsCmd 游玩记录
func playthroughsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playthroughs",
		Short: "查看游玩记录",
	}

	var userID int64
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出用户的游玩记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			list, err := core.Services.Playthroughs.ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("📚 暂无游玩记录")
				return nil
			}
			fmt.Printf("🎮 用户 %d 的游玩记录\n", userID)
			fmt.Println("═══════════════════════════════════════")
			for _, p := range list {
				fmt.Printf("  #%d  game=%d  %-12s  %-11s  %s  会话 %d 次\n",
					p.ID, p.GameID, p.PlaythroughType, p.State, service.FormatDuration(p.DurationSeconds), p.SessionCount)
			}
			return nil
		},
	}
	listCmd.Flags().Int64VarP(&userID, "user", "u", 0, "用户 ID")
	_ = listCmd.MarkFlagRequired("user")

	cmd.AddCommand(listCmd)
	return cmd
}

// sessionsCmd 会话账本
func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "查看会话账本",
	}

	var playthroughID int64
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "按编号列出某次游玩的会话",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			list, err := core.Services.Playthroughs.ListSessions(ctx, playthroughID)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("📚 暂无会话记录")
				return nil
			}
			for _, s := range list {
				fmt.Printf("  %3d. %s  %s  暂停 %d 次\n",
					s.SessionNumber,
					service.FormatTimeRangeMs(s.StartedAt, s.EndedAt, core.Location),
					service.FormatDuration(s.DurationSeconds),
					s.PauseCount)
			}
			return nil
		},
	}
	listCmd.Flags().Int64Var(&playthroughID, "id", 0, "游玩 ID")
	_ = listCmd.MarkFlagRequired("id")

	cmd.AddCommand(listCmd)
	return cmd
}

// metricsCmd 健康指标
func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "查看或重算每日健康指标",
	}

	var userID int64
	var date string
	cmd.PersistentFlags().Int64VarP(&userID, "user", "u", 0, "用户 ID")
	_ = cmd.MarkPersistentFlagRequired("user")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "查看某天的健康指标",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			d := date
			if d == "" {
				d = core.Services.Wellness.Today()
			}
			m, err := core.Services.Wellness.GetDaily(ctx, userID, d)
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Printf("📚 %s 没有健康指标（当天没有游玩或尚未计算）\n", d)
				return nil
			}
			printMetrics(m)
			return nil
		},
	}
	showCmd.Flags().StringVar(&date, "date", "", "日期 (YYYY-MM-DD)，默认今天")

	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "重算某天的健康指标",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.RequireWritable(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			d := date
			if d == "" {
				d = core.Services.Wellness.Today()
			}
			m, err := core.Services.Wellness.Recompute(ctx, userID, d)
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Printf("%s 没有游玩会话，跳过\n", d)
				return nil
			}
			printMetrics(m)
			return nil
		},
	}
	recomputeCmd.Flags().StringVar(&date, "date", "", "日期 (YYYY-MM-DD)，默认今天")

	var from, to string
	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "补算区间内缺失的健康指标",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.RequireWritable(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			end := to
			if end == "" {
				end = core.Services.Wellness.Today()
			}
			start := from
			if start == "" {
				start = end
			}
			res, err := core.Services.Wellness.Backfill(ctx, userID, start, end)
			if err != nil {
				return err
			}
			fmt.Printf("✅ %s ~ %s 补算 %d 天\n", res.From, res.To, len(res.Recomputed))
			for _, d := range res.Recomputed {
				fmt.Printf("  • %s\n", d)
			}
			return nil
		},
	}
	backfillCmd.Flags().StringVar(&from, "from", "", "开始日期 (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&to, "to", "", "结束日期 (YYYY-MM-DD)，默认今天")

	cmd.AddCommand(showCmd, recomputeCmd, backfillCmd)
	return cmd
}

// userCmd 用户资料
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "用户资料",
	}

	var userID int64
	var age int
	setAgeCmd := &cobra.Command{
		Use:   "set-age",
		Short: "设置用户年龄（影响每日时长上限）",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.RequireWritable(); err != nil {
				return err
			}
			if age < 0 || age > 150 {
				return fmt.Errorf("age 超出范围: %d", age)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := core.Repos.User.UpsertAge(ctx, userID, &age); err != nil {
				return err
			}
			slog.Info("已更新用户年龄", "user_id", userID, "age", age)
			fmt.Printf("✅ 用户 %d 年龄已设为 %d（已有指标需重算才会生效）\n", userID, age)
			return nil
		},
	}
	setAgeCmd.Flags().Int64VarP(&userID, "user", "u", 0, "用户 ID")
	setAgeCmd.Flags().IntVar(&age, "age", 0, "年龄")
	_ = setAgeCmd.MarkFlagRequired("user")
	_ = setAgeCmd.MarkFlagRequired("age")

	cmd.AddCommand(setAgeCmd)
	return cmd
}

func printMetrics(m *schema.DailyMetrics) {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("📅 %s 健康指标", m.MetricDate)),
		"",
		fmt.Sprintf("健康分    %s", renderScore(m.HealthScore)),
		fmt.Sprintf("游玩时长  %.2f 小时 %s", m.TotalHours, mutedStyle.Render(fmt.Sprintf("（上限 %.1f）", m.MaxHoursPerDay))),
		fmt.Sprintf("会话      %d 次，含暂停 %d 次", m.SessionCount, m.SessionsWithBreaks),
		fmt.Sprintf("休息达标  %.0f%%", m.BreakComplianceRatio*100),
		fmt.Sprintf("深夜游玩  %d 分钟", m.LateNightMinutes),
	}
	if m.AverageMood != nil {
		lines = append(lines, fmt.Sprintf("平均心情  %.1f", *m.AverageMood))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("时段 上午 %d / 下午 %d / 晚上 %d / 夜间 %d",
		m.MorningSessions, m.AfternoonSessions, m.EveningSessions, m.NightSessions)))
	fmt.Println(panelStyle.Render(strings.Join(lines, "\n")))
}
