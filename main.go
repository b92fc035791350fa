package main

import (
	"fmt"
	"os"

	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/cmd"
	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/runner"
)

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.date=..."
var (
	version string
	commit  string
	date    string
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.SetFactories(runner.Factories{
		CreateSourceAdapter: func(c runner.SourceConfig) (runner.SourceAdapter, error) {
			return CreateSourceAdapterFunc(SourceConfig(c))
		},
		CreateProcessor: CreateProcessorFunc,
		CreateConsumer:  CreateConsumerFunc,
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
