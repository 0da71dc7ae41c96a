package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/orchestrator"
)

var (
	trackStatus string
	trackAll    bool
	trackEvents bool
)

var trackCmd = &cobra.Command{
	Use:   "track [domain]",
	Short: "Query the host and event tracking database",
	Long:  `Query tracked hosts and extracted events for a specific domain or all domains`,
	Run:   runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackStatus, "status", "", "filter hosts by status (active, dead, new)")
	trackCmd.Flags().BoolVar(&trackAll, "all", false, "query all domains")
	trackCmd.Flags().BoolVar(&trackEvents, "events", false, "list tracked events instead of hosts")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) {
	if !trackAll && len(args) == 0 {
		color.Red("Error: either provide a domain or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if trackAll && len(args) > 0 {
		color.Red("Error: cannot use both domain and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize: %v", err)
		os.Exit(1)
	}

	db := orch.GetDB()
	if db == nil || !db.IsEnabled() {
		color.Red("Error: Database is not enabled. Please enable it in config.yaml")
		os.Exit(1)
	}

	domain := ""
	if len(args) > 0 {
		domain = args[0]
	}

	if trackEvents {
		listEvents(orch, domain)
		return
	}

	listHosts(orch, domain)
}

func listHosts(orch *orchestrator.Orchestrator, domain string) {
	if trackStatus != "" {
		trackStatus = strings.ToUpper(trackStatus)
	}

	records, err := orch.GetDB().QueryHosts(domain, trackStatus)
	if err != nil {
		color.Red("Failed to query database: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		color.Yellow("No tracked hosts found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tSTATUS\tFIRST SEEN\tLAST SEEN")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Host,
			r.Status,
			r.FirstSeen.Format("2006-01-02 15:04"),
			r.LastSeen.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	fmt.Println()
	color.Green("%d tracked host(s)", len(records))
}

func listEvents(orch *orchestrator.Orchestrator, domain string) {
	records, err := orch.GetDB().QueryEvents(domain)
	if err != nil {
		color.Red("Failed to query database: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		color.Yellow("No tracked events found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATES\tURL\tFIRST SEEN")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Name,
			r.Dates,
			r.URL,
			r.FirstSeen.Format("2006-01-02"),
		)
	}
	w.Flush()

	fmt.Println()
	color.Green("%d tracked event(s)", len(records))
}
