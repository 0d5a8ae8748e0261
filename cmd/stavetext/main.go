package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	cfgpkg "stavetext/internal/config"
	"stavetext/internal/diag"
	"stavetext/internal/pipeline"
)

// version 由 -ldflags "-X main.version=..." 注入。
var version = "dev"

var pipelineRun = pipeline.Run

// CLI：stavetext [flags] [paths...]
// 位置参数为输入根（文件/目录 或 "-" 表示 STDIN，不能与其他根混用）；
// 缺省读取 STDIN。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 占位 logger；配置合并后按最终 level/落盘目录重建
	logger := diag.NewLogger(corrID, "info", "")
	// flags
	var (
		flagConfig      string
		flagRenderer    string
		flagParser      string
		flagOut         string
		flagConcurrency int
		flagLogLevel    string
		flagLogFile     string
		flagStatus      bool
		flagInitDir     string
		flagVersion     bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON）；缺省读取 ./"+cfgpkg.DefaultConfigFile+"（若存在）")
	flag.StringVar(&flagRenderer, "renderer", "", "渲染器名称（覆盖配置）：lilypond|midi|report|json")
	flag.StringVar(&flagParser, "parser", "", "解析器名称（覆盖配置）")
	flag.StringVar(&flagOut, "out", "", "输出目录（覆盖配置）")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "谱表并发度（覆盖配置）")
	flag.StringVar(&flagLogLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	flag.StringVar(&flagLogFile, "log-file", "", "轮转日志目录（覆盖配置；空写 stderr）")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 "+cfgpkg.DefaultConfigFile+" 与 .env 模板（配置已存在时报错，.env 已存在时跳过）；不带值时默认当前目录")
	flag.BoolVar(&flagVersion, "version", false, "打印版本并退出")
	normalizeInitArg()
	flag.Parse()

	if flagVersion {
		fmt.Println("stavetext " + version)
		return 0
	}

	// roots（位置参数）
	roots := flag.Args()

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error(diag.StageConfig, diag.Classify(err), "init-config failed", &start)
			return exitConfig
		}
		cfgPath := filepath.Join(initDir, cfgpkg.DefaultConfigFile)
		if err := writeConfig(cfgPath, cfgpkg.DefaultTemplateConfig()); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error(diag.StageConfig, diag.Classify(err), "init-config failed", &start)
			return exitConfig
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return 0
	}

	// JSON 配置（文件或 ENV: STAVETEXT_CONFIG_JSON）
	var cfgJSON []byte
	if s := os.Getenv("STAVETEXT_CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if flagConfig == "" {
		if s := os.Getenv("STAVETEXT_CONFIG_FILE"); s != "" {
			flagConfig = s
		}
	}
	// 默认读取工作目录下 stavetext.config.json（若存在）
	if flagConfig == "" {
		if _, err := os.Stat(cfgpkg.DefaultConfigFile); err == nil {
			flagConfig = cfgpkg.DefaultConfigFile
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(flagConfig, cfgJSON)
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error(diag.StageConfig, diag.CodeConfig, "config load failed", &start)
			return exitConfig
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	// ENV 覆盖
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error(diag.StageConfig, diag.CodeConfig, "env overlay failed", &start)
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	var overCLI cfgpkg.Config
	overCLI.Components.Renderer = flagRenderer
	overCLI.Components.Parser = flagParser
	overCLI.Out = flagOut
	overCLI.Logging.Level = flagLogLevel
	overCLI.Logging.File = flagLogFile
	if flagConcurrency > 0 {
		overCLI.Concurrency = flagConcurrency
	}
	if len(roots) > 0 {
		overCLI.Inputs = roots
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	// 无输入根时读 STDIN
	if len(cfg.Inputs) == 0 {
		cfg.Inputs = []string{"-"}
	}

	// 校验
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error(diag.StageConfig, diag.CodeConfig, "config validate failed", &start)
		return exitConfig
	}

	// 使用最终配置重建 logger（级别 + 可选落盘目录）
	logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.File)

	// 预检：fs Writer 的输出目录可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error(diag.StageConfig, diag.CodeIO, "output dir preflight failed", &start)
		return exitIO
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error(diag.StageConfig, diag.CodeConfig, "assemble failed", &start)
		return exitConfig
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(cfg.Concurrency, set.Renderer)

	// debug: 输出运行时配置信息
	logger.DebugStart(diag.StageConfig, "effective", "", 0, map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"concurrency":  fmt.Sprintf("%d", cfg.Concurrency),
		"out":          cfg.Out,
		"reader":       cfg.Components.Reader,
		"parser":       cfg.Components.Parser,
		"renderer":     set.Renderer,
		"writer":       cfg.Components.Writer,
		"log_level":    cfg.Logging.Level,
	})

	// SIGINT → 取消
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 运行流水线（阶段级 start/finish/error 事件由 pipeline 内部记录）
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		code := diag.Classify(err)
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		return exitCode(code)
	}
	term.RunFinish(true, time.Since(start))
	return 0
}

// 退出码：0 成功，1 内部错误，2 配置/用法，3 解析（含判定/空间/节奏），
// 4 渲染，5 读写，130 取消。
const (
	exitInternal = 1
	exitConfig   = 2
	exitParse    = 3
	exitRender   = 4
	exitIO       = 5
	exitCancel   = 130
)

func exitCode(c diag.Code) int {
	switch c {
	case diag.CodeConfig:
		return exitConfig
	case diag.CodeParse, diag.CodeResolve, diag.CodeSpan, diag.CodeRhythm:
		return exitParse
	case diag.CodeRender:
		return exitRender
	case diag.CodeIO:
		return exitIO
	case diag.CodeCanceled:
		return exitCancel
	default:
		return exitInternal
	}
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, _ = f.Write([]byte("\n"))
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export ".
// - 仅按首个 '=' 分割；key 为左侧去空白；value 去首尾空白；
// - 若 value 被成对的单/双引号包裹，则去除外层引号；双引号内常见转义 \n/\t/\\/\" 作最小处理。
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key == "" {
			continue
		}
		// 去除成对引号
		if len(val) >= 2 {
			if (val[0] == '\'' && val[len(val)-1] == '\'') || (val[0] == '"' && val[len(val)-1] == '"') {
				quoted := val[0]
				val = val[1 : len(val)-1]
				if quoted == '"' {
					// 最小转义处理
					val = strings.ReplaceAll(val, "\\n", "\n")
					val = strings.ReplaceAll(val, "\\t", "\t")
					val = strings.ReplaceAll(val, "\\r", "\r")
					val = strings.ReplaceAll(val, "\\\"", "\"")
					val = strings.ReplaceAll(val, "\\\\", "\\")
				}
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用默认值当前目录 "."。
// 兼容以下形式：
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
//
// 仅在检测到“裸开关或后继为下一个开关”的情况下插入默认值。
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			// 若已到末尾，补一个默认值
			if i == len(args)-1 {
				out = append(out, ".")
				continue
			}
			// 若下一个是开关（以 - 开头），则补默认值
			if strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
				continue
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
// 仅创建文件；不覆盖，不合并。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		// 已存在直接跳过
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	var b strings.Builder
	b.WriteString("# stavetext .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON 配置 > 默认值\n")
	b.WriteString("# 空值表示未设置；按需填写后移除本行注释。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString("STAVETEXT_CONFIG_FILE=\n")
	b.WriteString("STAVETEXT_CONFIG_JSON=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	b.WriteString("STAVETEXT_PARSER=\n")
	b.WriteString("STAVETEXT_RENDERER=\n")
	b.WriteString("STAVETEXT_CONCURRENCY=\n")
	b.WriteString("STAVETEXT_LOG_LEVEL=\n")
	b.WriteString("STAVETEXT_LOG_FILE=\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}
	return nil
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查父目录是否可写（尝试在父目录创建并删除临时目录）。
// 仅针对 fs writer 生效；其他 writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	def := cfgpkg.Defaults()
	writerName := strings.TrimSpace(cfg.Components.Writer)
	if writerName == "" {
		writerName = def.Components.Writer
	}
	if writerName != "fs" {
		return nil
	}
	// 生效输出目录：cfg.Out 优先，其次 writer options 的 output_dir
	dir := strings.TrimSpace(cfg.Out)
	if dir == "" {
		var wopts struct {
			OutputDir string `json:"output_dir"`
		}
		if len(cfg.Options.Writer) > 0 {
			_ = json.Unmarshal(cfg.Options.Writer, &wopts)
		}
		dir = strings.TrimSpace(wopts.OutputDir)
	}
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		// 目录存在：尝试写入临时文件
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil && !st.IsDir() {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	// 目录不存在：检查父目录可写性
	parent := filepath.Dir(dir)
	if parent == "" || parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
