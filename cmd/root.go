package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/config"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/database"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/elastic"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/orchestrator"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/report"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/session"
)

var (
	configFile     string
	domain         string
	candidateFile  string
	outputDir      string
	jsonFormat     bool
	silent         bool
	stats          bool
	verbose        bool
	noExtract      bool
	probeWorkers   int
	extractWorkers int
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "hackradar",
	Short: "hackathon discovery over community DNS registries",
	Long:  `discovers live hackathon subdomains by probing a community DNS registry and extracting structured event data with an LLM`,
	Run:   runScan,
}

func Execute() {
	hasSilentFlag := false
	for i, arg := range os.Args {
		if arg == "-cL" {
			os.Args[i] = "--cL"
		}
		if arg == "-silent" {
			os.Args[i] = "--silent"
			hasSilentFlag = true
		}
		if arg == "-stats" {
			os.Args[i] = "--stats"
		}
		if arg == "-no-extract" {
			os.Args[i] = "--no-extract"
		}
		if arg == "-pc" {
			os.Args[i] = "--pc"
		}
		if arg == "-ec" {
			os.Args[i] = "--ec"
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	orchestrator.DebugLog = DebugLog
	session.DebugLog = DebugLog
	database.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
INPUT:
   -d, -domain string      base domain to scan (default: registry domain from config)
   -cL, -candidates string file with extra candidate subdomains, one per line

EXTRACTION:
   -no-extract             probe only, skip LLM extraction

OUTPUT:
   -o, -output string      directory for results.json, successes.json, summary.json
   -j, -json               print extracted events as JSONL to stdout
   -silent                 silent mode - no banner or extra output
   -stats                  display candidate source statistics after scan

CONFIGURATION:
   -c, -config string      config file path (default: config/config.yaml)
   -pc int                 probe concurrency ceiling override
   -ec int                 extraction concurrency ceiling override

OPTIMIZATION:
   -v, -verbose            enable verbose/debug output
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: config/config.yaml)")

	rootCmd.Flags().StringVarP(&domain, "domain", "d", "", "base domain to scan")
	rootCmd.Flags().StringVar(&candidateFile, "cL", "", "file with extra candidate subdomains")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for output artifacts")
	rootCmd.Flags().BoolVarP(&jsonFormat, "json", "j", false, "print extracted events as JSONL to stdout")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")
	rootCmd.Flags().BoolVar(&stats, "stats", false, "display candidate source statistics after scan")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")
	rootCmd.Flags().BoolVar(&noExtract, "no-extract", false, "probe only, skip LLM extraction")
	rootCmd.Flags().IntVar(&probeWorkers, "pc", 0, "probe concurrency ceiling override")
	rootCmd.Flags().IntVar(&extractWorkers, "ec", 0, "extraction concurrency ceiling override")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	Verbose = verbose

	if verbose {
		setDebugLogFunctions()
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize: %v", err)
		os.Exit(1)
	}

	scanOptions := orchestrator.ScanOptions{
		Domain:             domain,
		CandidateFile:      candidateFile,
		JSONFormat:         jsonFormat,
		Stats:              stats,
		NoExtract:          noExtract,
		ProbeConcurrency:   probeWorkers,
		ExtractConcurrency: extractWorkers,
	}

	if !silent && !verbose {
		scanOptions.OnProbeProgress = progressPrinter("Probing subdomains")
		scanOptions.OnExtractProgress = progressPrinter("Querying LLM      ")
	}

	result, err := orch.RunScan(scanOptions)
	if err != nil {
		color.Red("Scan failed: %v", err)
		os.Exit(1)
	}

	dir := outputDir
	if dir == "" {
		dir = orch.GetConfig().Output.Dir
	}

	summaryPath, err := report.WriteArtifacts(dir, result)
	if err != nil {
		color.Red("Output error: %v", err)
		os.Exit(1)
	}

	if jsonFormat {
		for _, record := range result.Records {
			jsonBytes, _ := json.Marshal(record)
			fmt.Println(string(jsonBytes))
		}
	}

	if !silent {
		report.PrintSummary(result)
		fmt.Printf("\nFull details in %s.\n", summaryPath)
	}

	if stats && !silent {
		displayStatistics(result)
	}

	indexToElasticsearch(orch, result)

	os.Exit(0)
}

// progressPrinter writes an in-place counter like "Probing subdomains 3/24".
func progressPrinter(label string) func(done, total int) {
	return func(done, total int) {
		fmt.Printf("\r%s  %d/%d", label, done, total)
		if done == total {
			fmt.Println()
		}
	}
}

func indexToElasticsearch(orch *orchestrator.Orchestrator, result *orchestrator.ScanResult) {
	cfg := orch.GetConfig().Elasticsearch
	if !cfg.Enabled || len(result.Records) == 0 {
		return
	}

	client, err := elastic.New(elastic.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		Index:    cfg.Index,
	})
	if err != nil {
		orch.Logger().Warnf("Elasticsearch indexing skipped: %v", err)
		return
	}

	if err := client.IndexRecords(context.Background(), result.Domain, result.Records); err != nil {
		orch.Logger().Warnf("Elasticsearch indexing failed: %v", err)
		return
	}

	if !silent {
		color.Cyan("Indexed %d event(s) to Elasticsearch", len(result.Records))
	}
}

func printBanner() {
	banner := color.CyanString(`
┬ ┬┌─┐┌─┐┬┌─┬─┐┌─┐┌┬┐┌─┐┬─┐
├─┤├─┤│  ├┴┐├┬┘├─┤ ││├─┤├┬┘
┴ ┴┴ ┴└─┘┴ ┴┴└─┴ ┴─┴┘┴ ┴┴└─
`)
	info := color.HiBlackString("llm powered hackathon discovery over community DNS registries")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}

func displayStatistics(result *orchestrator.ScanResult) {
	fmt.Println()

	color.Cyan("[INF] Printing candidate source statistics for %s", result.Domain)
	fmt.Println()

	fmt.Printf(" %-20s %-15s %-12s %-10s\n", "Source", "Duration", "Results", "Errors")
	color.Cyan(strings.Repeat("─", 60))

	stats := result.SourceStats
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})

	for _, stat := range stats {
		duration := fmt.Sprintf("%.0fms", stat.Duration.Seconds()*1000)
		if stat.Duration.Seconds() >= 1 {
			duration = fmt.Sprintf("%.3fs", stat.Duration.Seconds())
		}

		fmt.Printf(" %-20s %-15s %-12d %-10d\n",
			stat.Name,
			duration,
			stat.Results,
			stat.Errors,
		)
	}

	fmt.Println()
}
