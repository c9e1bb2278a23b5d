// podcred serves the Proof of Degree API and offers the same operations on
// the command line.
//
// Usage:
//
//	podcred [--rpc <url>] serve [--listen <addr>]
//	podcred status <university> [--wait]
//	podcred verify <diploma-id> | --token <token-id>
//	podcred issue <student> <diploma-hash>
//	podcred batch <file.csv>
//	podcred universities [--pending] [--search <name>]
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	rpcFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "chain JSON-RPC endpoint (overrides CHAIN_RPC_URL)",
		EnvVars: []string{"PODCRED_RPC"},
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "HTTP listen address (overrides SERVER_ADDRESS)",
	}
	waitFlag = &cli.BoolFlag{
		Name:  "wait",
		Usage: "keep polling while the status is pending",
	}
	tokenFlag = &cli.StringFlag{
		Name:  "token",
		Usage: "verify by NFT token id instead of diploma id",
	}
	pendingFlag = &cli.BoolFlag{
		Name:  "pending",
		Usage: "only universities awaiting approval or role",
	}
	searchFlag = &cli.StringFlag{
		Name:  "search",
		Usage: "fuzzy match on university name",
	}
)

func main() {
	app := &cli.App{
		Name:  "podcred",
		Usage: "Proof of Degree credential service",
		Flags: []cli.Flag{rpcFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  []cli.Flag{listenFlag},
				Action: serveCmd,
			},
			{
				Name:      "status",
				Usage:     "reconcile a university's registry approval and role",
				ArgsUsage: "<university-address>",
				Flags:     []cli.Flag{waitFlag},
				Action:    statusCmd,
			},
			{
				Name:      "verify",
				Usage:     "verify a diploma on chain",
				ArgsUsage: "<diploma-id>",
				Flags:     []cli.Flag{tokenFlag},
				Action:    verifyCmd,
			},
			{
				Name:      "issue",
				Usage:     "issue one diploma and wait for confirmation",
				ArgsUsage: "<student-address> <diploma-hash>",
				Action:    issueCmd,
			},
			{
				Name:      "batch",
				Usage:     "issue diplomas from a CSV file of address[,hash] lines",
				ArgsUsage: "<file.csv>",
				Action:    batchCmd,
			},
			{
				Name:   "universities",
				Usage:  "list registered universities with their status",
				Flags:  []cli.Flag{pendingFlag, searchFlag},
				Action: universitiesCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
